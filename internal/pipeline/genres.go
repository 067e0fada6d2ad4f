package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonquils-io/jonquils/internal/config"
)

// GenreConfig holds genre alias configuration loaded from .jonquils.yaml.
//
// Embedded genre tags are freeform text, so the same genre arrives as
// "hiphop", "Hip Hop" or "Hip-Hop" depending on the tagging tool. Aliases
// map those variants to one canonical name before tracks reach the catalog,
// keeping genre browsing and search filters coherent.
type GenreConfig struct {
	// GenreAliases maps a tag variant (matched case-insensitively) to the
	// canonical genre name.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	GenreAliases map[string]string `yaml:"genre_aliases"`
}

// DefaultGenreConfigPath is the default location for the pipeline
// configuration file.
const DefaultGenreConfigPath = ".jonquils.yaml"

// GenreConfigPathEnvVar is the environment variable name for a custom
// config path.
const GenreConfigPathEnvVar = "JONQUILS_CONFIG_PATH"

// LoadGenreConfig loads genre aliases from a YAML file at the given path.
// Aliases are optional: a missing, unreadable or invalid file yields an
// empty config and a log line, never an error, so the scheduler can start
// without one.
func LoadGenreConfig(path string) *GenreConfig {
	cfg := &GenreConfig{GenreAliases: make(map[string]string)}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, continuing without genre aliases",
				slog.String("path", path))

			return cfg
		}

		slog.Warn("Failed to read config file, continuing without genre aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg
	}

	if len(data) == 0 {
		return cfg
	}

	var raw GenreConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("Failed to parse config file, continuing without genre aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg
	}

	// Fold alias keys to lower case so lookups ignore tag casing.
	for alias, canonical := range raw.GenreAliases {
		cfg.GenreAliases[strings.ToLower(strings.TrimSpace(alias))] = strings.TrimSpace(canonical)
	}

	return cfg
}

// LoadGenreConfigFromEnv loads config from the path in JONQUILS_CONFIG_PATH,
// falling back to ".jonquils.yaml" in the current directory.
func LoadGenreConfigFromEnv() *GenreConfig {
	return LoadGenreConfig(config.GetEnvStr(GenreConfigPathEnvVar, DefaultGenreConfigPath))
}

// Normalize maps a raw genre tag to its canonical name. Unaliased genres
// pass through trimmed but otherwise untouched.
func (c *GenreConfig) Normalize(genre string) string {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		return ""
	}

	if canonical, ok := c.GenreAliases[strings.ToLower(genre)]; ok {
		return canonical
	}

	return genre
}
