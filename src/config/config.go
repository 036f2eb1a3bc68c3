package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxWidth = 800
	DefaultQuality  = 85
)

// Config represents the application configuration
type Config struct {
	SourceDir string     `yaml:"source_dir" toml:"source_dir" validate:"required"`
	TargetDir string     `yaml:"target_dir" toml:"target_dir" validate:"required"`
	MaxWidth  int        `yaml:"max_width" toml:"max_width" validate:"gt=0"`
	Quality   int        `yaml:"quality" toml:"quality" validate:"min=1,max=100"`
	Watch     bool       `yaml:"watch" toml:"watch"`
	Page      PageConfig `yaml:"page" toml:"page"`
	Log       LogConfig  `yaml:"log" toml:"log"`
}

// PageConfig holds the texts shown on the generated gallery page
type PageConfig struct {
	Title    string `yaml:"title" toml:"title"`
	Subtitle string `yaml:"subtitle" toml:"subtitle"`
	Footer   string `yaml:"footer" toml:"footer"`
	Lang     string `yaml:"lang" toml:"lang"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// Load reads and parses the configuration file.
// The format is picked from the extension: .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields
func (c *Config) ApplyDefaults() {
	if c.MaxWidth == 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.Quality == 0 {
		c.Quality = DefaultQuality
	}
	if c.Page.Title == "" {
		c.Page.Title = "Certificate Gallery"
	}
	if c.Page.Subtitle == "" {
		c.Page.Subtitle = "Awards and certifications I have earned. Click a certificate to view it full size or download it."
	}
	if c.Page.Footer == "" {
		c.Page.Footer = "Generated by certgallery"
	}
	if c.Page.Lang == "" {
		c.Page.Lang = "en"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config key instead of the Go field name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if _, rest, ok := strings.Cut(key, "."); ok {
			key = rest
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", key))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", key, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", key, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", key, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", key, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", key, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// CertificatesDir returns where normalized images are written
func (c *Config) CertificatesDir() string {
	return filepath.Join(c.TargetDir, "certificates")
}

// PagePath returns the path of the generated gallery page
func (c *Config) PagePath() string {
	return filepath.Join(c.TargetDir, "index.html")
}
