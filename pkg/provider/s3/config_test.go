package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("bucket required", func(t *testing.T) {
		cfg := Config{}
		err := cfg.Validate()
		require.Error(t, err)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "Bucket", cfgErr.Field)
	})

	t.Run("static credentials must be paired", func(t *testing.T) {
		cfg := Config{Bucket: "b", AccessKeyID: "AKIA..."}
		require.Error(t, cfg.Validate())

		cfg = Config{Bucket: "b", SecretAccessKey: "secret"}
		require.Error(t, cfg.Validate())

		cfg = Config{Bucket: "b", AccessKeyID: "AKIA...", SecretAccessKey: "secret"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("minimal config passes", func(t *testing.T) {
		cfg := Config{Bucket: "my-bucket"}
		assert.NoError(t, cfg.Validate())
	})
}
