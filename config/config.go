package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     string `toml:"port" mapstructure:"port"`
	Prefix   string `toml:"prefix" mapstructure:"prefix"`
	APIAuth  string `toml:"api_auth" mapstructure:"api_auth"`
	Libonnx  string `toml:"libonnx" mapstructure:"libonnx"`
	ModelDir string `toml:"model_dir" mapstructure:"model_dir"`

	Threshold         float32 `toml:"threshold" mapstructure:"threshold"`
	BatchThreshold    float32 `toml:"batch_threshold" mapstructure:"batch_threshold"`
	SkipInvalidImages bool    `toml:"skip_invalid_images" mapstructure:"skip_invalid_images"`

	ReplaceUnderscore bool     `toml:"replace_underscore" mapstructure:"replace_underscore"`
	EscapeTags        bool     `toml:"escape_tags" mapstructure:"escape_tags"`
	ExcludeTags       []string `toml:"exclude_tags" mapstructure:"exclude_tags"`
}

const DefaultPath = "config.toml"

func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           "8000",
		Prefix:         "/tagger/v1",
		ModelDir:       "models",
		Threshold:      0.35,
		BatchThreshold: 0.35,
	}
}

var (
	cfg      = Default()
	cfgPath  = DefaultPath
	loadOnce sync.Once
)

// SetPath changes the file read by C. It has no effect once C has been called.
func SetPath(path string) {
	cfgPath = path
}

func C() *Config {
	loadOnce.Do(func() {
		loaded, err := Load(cfgPath)
		if err != nil {
			panic(err)
		}
		cfg = *loaded
	})
	return &cfg
}

// Load reads defaults, then the toml file at path when it exists, then
// TAGGER_* environment variables (a .env file in the working dir is honored).
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			if err := toml.Unmarshal(data, &c); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	_ = godotenv.Load()
	if err := applyEnv(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyEnv(c *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("TAGGER_HOST", &c.Host)
	setString("TAGGER_PORT", &c.Port)
	setString("TAGGER_PREFIX", &c.Prefix)
	setString("TAGGER_API_AUTH", &c.APIAuth)
	setString("TAGGER_LIBONNX", &c.Libonnx)
	setString("TAGGER_MODEL_DIR", &c.ModelDir)

	if v, ok := os.LookupEnv("TAGGER_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("invalid TAGGER_THRESHOLD %q: %w", v, err)
		}
		c.Threshold = float32(f)
	}
	if v, ok := os.LookupEnv("TAGGER_SKIP_INVALID_IMAGES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TAGGER_SKIP_INVALID_IMAGES %q: %w", v, err)
		}
		c.SkipInvalidImages = b
	}
	if v, ok := os.LookupEnv("TAGGER_EXCLUDE_TAGS"); ok {
		c.ExcludeTags = splitList(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", c.Threshold)
	}
	if c.BatchThreshold < 0 || c.BatchThreshold > 1 {
		return fmt.Errorf("batch_threshold must be within [0, 1], got %v", c.BatchThreshold)
	}
	if _, err := ParseCredentials(c.APIAuth); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
