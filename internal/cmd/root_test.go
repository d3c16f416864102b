package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/fastls/pkg/datamap"
)

func TestLoadGlobalOptionsDefaults(t *testing.T) {
	opts, err := loadGlobalOptions()
	require.NoError(t, err)

	// "/" collapses to the empty prefix (list everything).
	assert.Equal(t, "", opts.Prefix)
	assert.Equal(t, 10, opts.Threads)
	assert.Equal(t, 100, opts.Concurrency)
	assert.Empty(t, opts.Filter)
	assert.False(t, opts.Log)
	assert.False(t, opts.ForcePathStyle)
	assert.Zero(t, opts.RateLimit)
}

func TestLoadGlobalOptionsNormalization(t *testing.T) {
	viper.Set("endpoint-url", "http://localhost:9000")
	viper.Set("output-log-file", "run.log")
	viper.Set("prefix", "photos/")
	t.Cleanup(func() {
		viper.Set("endpoint-url", "")
		viper.Set("output-log-file", "")
		viper.Set("prefix", "/")
	})

	opts, err := loadGlobalOptions()
	require.NoError(t, err)

	assert.Equal(t, "photos/", opts.Prefix)
	assert.True(t, opts.ForcePathStyle, "custom endpoint implies path-style")
	assert.True(t, opts.Log, "explicit log file implies logging")
	assert.Equal(t, "run.log", opts.OutputLogFile)
}

// chdirTempDir is t.Chdir(t.TempDir()) for Go versions before 1.24.
func chdirTempDir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadHintsPathResolution(t *testing.T) {
	chdirTempDir(t)

	t.Run("conventional name with region", func(t *testing.T) {
		_, path, err := loadHints(globalOptions{}, bucketSpec{bucket: "b", region: "us-west-2"})
		require.NoError(t, err)
		assert.Equal(t, "us-west-2_b_ks_hints.input", path)
	})

	t.Run("conventional name without region", func(t *testing.T) {
		_, path, err := loadHints(globalOptions{}, bucketSpec{bucket: "b"})
		require.NoError(t, err)
		assert.Equal(t, "b_ks_hints.input", path)
	})

	t.Run("explicit path wins and loads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.input")
		require.NoError(t, os.WriteFile(path, []byte("b/\na/\n"), 0o644))

		prefixes, got, err := loadHints(globalOptions{KsFile: path}, bucketSpec{bucket: "b"})
		require.NoError(t, err)
		assert.Equal(t, path, got)
		assert.Equal(t, []string{"a/", "b/"}, prefixes)
	})
}

func TestOpenSinksDefaultNames(t *testing.T) {
	chdirTempDir(t)

	t.Run("list mode", func(t *testing.T) {
		specs := []bucketSpec{{bucket: "src", region: "us-east-1"}}
		writer, ks, cleanup, err := openSinks(globalOptions{}, datamap.ModeList, specs, "run-1", "20240601T000000Z")
		require.NoError(t, err)
		defer cleanup()
		require.NotNil(t, writer)
		require.NotNil(t, ks)

		assert.FileExists(t, "us-east-1_src_20240601T000000Z.jsonl")
		assert.FileExists(t, "us-east-1_src_20240601T000000Z.ks")
	})

	t.Run("diff mode names both sides", func(t *testing.T) {
		specs := []bucketSpec{
			{bucket: "src", region: "us-east-1"},
			{bucket: "dst", region: "eu-west-1"},
		}
		_, _, cleanup, err := openSinks(globalOptions{}, datamap.ModeDiff, specs, "run-2", "20240601T000000Z")
		require.NoError(t, err)
		defer cleanup()

		assert.FileExists(t, "us-east-1_src_eu-west-1_dst_20240601T000000Z.jsonl")
	})

	t.Run("explicit paths override", func(t *testing.T) {
		opts := globalOptions{OutputFile: "out.jsonl", OutputKsFile: "out.ks"}
		_, _, cleanup, err := openSinks(opts, datamap.ModeList, []bucketSpec{{bucket: "b"}}, "run-3", "x")
		require.NoError(t, err)
		defer cleanup()

		assert.FileExists(t, "out.jsonl")
		assert.FileExists(t, "out.ks")
	})
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "diff", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2024-06-01")
	assert.Equal(t, "1.2.3", versionInfo.Version)
	assert.Equal(t, "abc123", versionInfo.Commit)
	assert.Equal(t, "1.2.3", rootCmd.Version)
}
