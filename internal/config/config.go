package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	FuzzySearch FuzzySearchConfig `yaml:"fuzzysearch"`
	Hashing     HashingConfig     `yaml:"hashing"`
	Storage     StorageConfig     `yaml:"storage"`
	Web         WebConfig         `yaml:"web"`
	Display     DisplayConfig     `yaml:"display"`
}

type FuzzySearchConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"-"` // only ever read from the environment
	Threshold int    `yaml:"threshold"`
}

type HashingConfig struct {
	Workers int `yaml:"workers"`
}

type StorageConfig struct {
	CachePath string `yaml:"cache_path"` // sqlite fingerprint cache
	IndexPath string `yaml:"index_path"` // persisted local index (empty = rebuilt from cache)
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DisplayConfig struct {
	Hyperlinks bool `yaml:"hyperlinks"`
}

// Link returns an OSC 8 hyperlink for terminal emulators (iTerm2, etc.)
// showing text but opening url. Returns text alone when hyperlinks are
// disabled or url is empty.
func (c *DisplayConfig) Link(url, text string) string {
	if !c.Hyperlinks || url == "" {
		return text
	}
	// OSC 8 hyperlink format: \e]8;;URL\e\\TEXT\e]8;;\e\\
	return "\x1b]8;;" + url + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

// envList reads a comma-separated list, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the configuration embedded in the binary.
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		FuzzySearch: FuzzySearchConfig{
			URL:       envString("FUZZYSEARCH_URL", d.FuzzySearch.URL),
			APIKey:    os.Getenv("FUZZYSEARCH_API_KEY"),
			Threshold: envInt("MATCH_THRESHOLD", d.FuzzySearch.Threshold),
		},
		Hashing: HashingConfig{
			Workers: envInt("HASH_WORKERS", d.Hashing.Workers),
		},
		Storage: StorageConfig{
			CachePath: envString("CACHE_PATH", d.Storage.CachePath),
			IndexPath: envString("INDEX_PATH", d.Storage.IndexPath),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		Display: DisplayConfig{
			Hyperlinks: envBool("TERMINAL_HYPERLINKS", d.Display.Hyperlinks),
		},
	}
}
