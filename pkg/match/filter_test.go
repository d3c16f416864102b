package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	t.Run("empty expression means match everything", func(t *testing.T) {
		f, err := Compile("")
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.True(t, f.Matches("anything/at/all"))
	})

	t.Run("invalid pattern rejected", func(t *testing.T) {
		_, err := Compile("logs/[")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidExpression)
	})
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		expr string
		key  string
		want bool
	}{
		{"exact file glob", "logs/2024/*.gz", "logs/2024/app.gz", true},
		{"single star does not cross separators", "logs/*.gz", "logs/2024/app.gz", false},
		{"doublestar crosses separators", "logs/**/*.gz", "logs/2024/05/app.gz", true},
		{"trailing slash matches subtree", "photos/", "photos/2021/cat.jpg", true},
		{"trailing slash excludes siblings", "photos/", "videos/cat.mp4", false},
		{"no match outside prefix", "data/**", "logs/app.gz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Matches(tt.key))
		})
	}
}

func TestString(t *testing.T) {
	f, err := Compile("a/**")
	require.NoError(t, err)
	assert.Equal(t, "a/**", f.String())

	var nilFilter *KeyFilter
	assert.Equal(t, "", nilFilter.String())
}
