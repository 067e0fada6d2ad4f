package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGenreConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jonquils.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadGenreConfigValidYAML(t *testing.T) {
	path := writeGenreConfig(t, `
genre_aliases:
  hiphop: Hip-Hop
  "Hip Hop": Hip-Hop
  "drum and bass": Drum & Bass
`)

	cfg := LoadGenreConfig(path)

	require.NotNil(t, cfg)
	assert.Len(t, cfg.GenreAliases, 3)
	assert.Equal(t, "Hip-Hop", cfg.GenreAliases["hiphop"])
	assert.Equal(t, "Hip-Hop", cfg.GenreAliases["hip hop"])
	assert.Equal(t, "Drum & Bass", cfg.GenreAliases["drum and bass"])
}

func TestLoadGenreConfigMissingFile(t *testing.T) {
	cfg := LoadGenreConfig("/nonexistent/path/jonquils.yaml")

	require.NotNil(t, cfg)
	assert.Empty(t, cfg.GenreAliases)
}

func TestLoadGenreConfigInvalidYAML(t *testing.T) {
	path := writeGenreConfig(t, "genre_aliases: [not: valid: yaml")

	cfg := LoadGenreConfig(path)

	require.NotNil(t, cfg)
	assert.Empty(t, cfg.GenreAliases)
}

func TestLoadGenreConfigEmptyFile(t *testing.T) {
	path := writeGenreConfig(t, "")

	cfg := LoadGenreConfig(path)

	require.NotNil(t, cfg)
	assert.Empty(t, cfg.GenreAliases)
}

func TestLoadGenreConfigFromEnvCustomPath(t *testing.T) {
	path := writeGenreConfig(t, "genre_aliases:\n  edm: Electronic\n")
	t.Setenv(GenreConfigPathEnvVar, path)

	cfg := LoadGenreConfigFromEnv()

	assert.Equal(t, "Electronic", cfg.GenreAliases["edm"])
}

func TestGenreConfigNormalize(t *testing.T) {
	cfg := LoadGenreConfig(writeGenreConfig(t, `
genre_aliases:
  hiphop: Hip-Hop
  "hip hop": Hip-Hop
`))

	tests := []struct {
		name  string
		genre string
		want  string
	}{
		{name: "exact alias", genre: "hiphop", want: "Hip-Hop"},
		{name: "case insensitive", genre: "HipHop", want: "Hip-Hop"},
		{name: "alias with space", genre: "Hip Hop", want: "Hip-Hop"},
		{name: "unaliased passes through", genre: "Jazz", want: "Jazz"},
		{name: "whitespace trimmed", genre: "  Jazz  ", want: "Jazz"},
		{name: "empty stays empty", genre: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Normalize(tt.genre))
		})
	}
}
