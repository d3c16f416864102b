// Package cmd wires the fastls command-line surface: flag parsing, config
// resolution, logging setup, and assembly of the listing/aggregation/monitor
// tasks that make up a run.
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "fastls",
	Short: "Concurrent fast listing and diffing of S3 buckets",
	Long: `fastls enumerates every object key in an S3 bucket by partitioning the
key space and issuing many paginated listings concurrently, instead of one
serial walk. It can also diff two buckets, classifying keys as left-only,
right-only, or mismatched.

A key-space hints file (one prefix per line) seeds the initial partitions;
without hints the key space is discovered dynamically from common prefixes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// globalOptions are the run knobs shared by both subcommands. Values are
// resolved through viper so FASTLS_* environment variables override flag
// defaults.
type globalOptions struct {
	Prefix         string  `mapstructure:"prefix"`
	Threads        int     `mapstructure:"threads"`
	Concurrency    int     `mapstructure:"concurrency"`
	KsFile         string  `mapstructure:"ks-file"`
	Filter         string  `mapstructure:"filter"`
	Log            bool    `mapstructure:"log"`
	EndpointURL    string  `mapstructure:"endpoint-url"`
	ForcePathStyle bool    `mapstructure:"force-path-style"`
	OutputLogFile  string  `mapstructure:"output-log-file"`
	OutputKsFile   string  `mapstructure:"output-ks-file"`
	OutputFile     string  `mapstructure:"output-file"`
	RateLimit      float64 `mapstructure:"rate-limit"`
	StatusAddr     string  `mapstructure:"status-addr"`
	Verbose        bool    `mapstructure:"verbose"`
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("prefix", "p", "/", "prefix to start with")
	pf.IntP("threads", "t", 10, "worker threads for the runtime")
	pf.IntP("concurrency", "c", 100, "max concurrent list operations per bucket")
	pf.StringP("ks-file", "k", "", "key space hints input file (default {region}_{bucket}_ks_hints.input)")
	pf.StringP("filter", "f", "", "object filter expression (glob against the full key)")
	pf.BoolP("log", "l", false, "log to file (default fastls_{datetime}.log)")
	pf.String("endpoint-url", "", "custom S3 endpoint URL")
	pf.Bool("force-path-style", false, "force path-style addressing (implied by --endpoint-url)")
	pf.String("output-log-file", "", "log file path (implies --log)")
	pf.String("output-ks-file", "", "key space output path (default {region}_{bucket}_{datetime}.ks)")
	pf.String("output-file", "", "result output path (default {region}_{bucket}_{datetime}.jsonl)")
	pf.Float64("rate-limit", 0, "max list requests per second per bucket (0 = unlimited)")
	pf.String("status-addr", "", "serve /status and /healthz on this address while running")
	pf.BoolP("verbose", "v", false, "debug-level logging")

	viper.SetEnvPrefix("FASTLS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pf)
}

// loadGlobalOptions resolves flags, environment, and defaults into one
// struct.
func loadGlobalOptions() (globalOptions, error) {
	var opts globalOptions
	if err := viper.Unmarshal(&opts); err != nil {
		return globalOptions{}, err
	}
	// "/" means list everything; S3 keys have no leading slash.
	if opts.Prefix == "/" {
		opts.Prefix = ""
	}
	// A custom endpoint is almost always an S3-compatible store that
	// needs path-style addressing.
	if opts.EndpointURL != "" {
		opts.ForcePathStyle = true
	}
	if opts.OutputLogFile != "" {
		opts.Log = true
	}
	return opts, nil
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with the given base context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
