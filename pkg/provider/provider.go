// Package provider defines the storage listing capability the enumeration
// engine depends on.
//
// The engine only needs one operation: "list keys under a prefix, optionally
// delimited at one path separator, paginated". Implementations use SDK
// default credential chains and must be safe for concurrent use: the lister
// keeps many pages in flight against a single Pager.
package provider

import (
	"context"
	"time"
)

// Pager abstracts paginated delimiter listing.
type Pager interface {
	// ListPage returns one page of objects and common prefixes.
	// Use the returned continuation token for subsequent pages.
	ListPage(ctx context.Context, opts PageOptions) (*Page, error)

	// Close releases any resources held by the pager.
	Close() error
}

// PageOptions configures a ListPage call.
type PageOptions struct {
	// Prefix restricts results to keys starting with this value.
	Prefix string

	// Delimiter groups deeper keys into common prefixes (usually "/").
	// Empty means a flat listing with no common prefixes.
	Delimiter string

	// StartAfter begins the listing strictly after this key. Only honored
	// on the first page of a listing (no continuation token).
	StartAfter string

	// ContinuationToken resumes from a previous Page. Empty starts over.
	ContinuationToken string

	// MaxKeys caps the page size. Zero uses the provider default.
	MaxKeys int
}

// Page is one page of listing results.
type Page struct {
	// Objects are the object summaries directly under the prefix.
	Objects []ObjectSummary

	// CommonPrefixes are the immediate child prefixes, the signal that
	// further keys exist under a deeper path segment.
	CommonPrefixes []string

	// ContinuationToken retrieves the next page; empty means done.
	ContinuationToken string

	// IsTruncated indicates more results are available.
	IsTruncated bool
}

// ObjectSummary is the per-object metadata returned by listing. Keys and
// metadata only; the engine never touches object content.
type ObjectSummary struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}
