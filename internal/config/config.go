package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

const (
	DefaultPath = "config.yaml"
	EnvPrefix   = "KABLE_"
)

// Config represents the complete configuration structure
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Lists      ListsConfig      `yaml:"lists"`
	Fields     FieldsConfig     `yaml:"fields"`
	Store      StoreConfig      `yaml:"store"`
	Assets     AssetsConfig     `yaml:"assets"`
	Rest       RestConfig       `yaml:"rest"`
	Submission SubmissionConfig `yaml:"submission"`
	Choices    ChoicesConfig    `yaml:"choices"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
}

type SiteConfig struct {
	// URL is the site root, e.g. https://tenant.example/sites/news.
	URL string `yaml:"url" default:"http://localhost:12600"`
}

type ListsConfig struct {
	Submissions string `yaml:"submissions" default:"Kable Submissions"`
	Content     string `yaml:"content" default:"Kable Content"`
	// Assets is the folder under the site root holding uploaded images.
	// Empty means the content list's attachment folder.
	Assets string `yaml:"assets" default:""`
}

type FieldsConfig struct {
	Title         string `yaml:"title" default:"Title"`
	GroupName     string `yaml:"group_name" default:"GroupName"`
	PublishedDate string `yaml:"published_date" default:"PublishedDate"`
	Submission    string `yaml:"submission" default:"KableSubmissionId"`
	Section       string `yaml:"section" default:"KableSection"`
	Info          string `yaml:"info" default:"Info"`
	Layout        string `yaml:"layout" default:"KableLayout"`
	SortOrder     string `yaml:"sort_order" default:"SortOrder"`
	Image         string `yaml:"image" default:"KableImage"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend" default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path" default:"./kable.db"`
	Compression string `yaml:"compression" default:"zstd"`
}

type AssetsConfig struct {
	Backend string   `yaml:"backend" default:"fs"`
	FSRoot  string   `yaml:"fs_root" default:"./assets"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket" default:""`
	Region          string `yaml:"region" default:"auto"`
	Endpoint        string `yaml:"endpoint" default:""`
	AccessKeyID     string `yaml:"access_key_id" default:""`
	AccessKeySecret string `yaml:"access_key_secret" default:""`
}

type RestConfig struct {
	Token             string        `yaml:"token" default:""`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"5"`
	Burst             int           `yaml:"burst" default:"5"`
	Timeout           time.Duration `yaml:"timeout" default:"30s"`
}

type SubmissionConfig struct {
	Timeout          time.Duration `yaml:"timeout" default:"2m"`
	IdempotencyField string        `yaml:"idempotency_field" default:""`
	InfoRenderer     string        `yaml:"info_renderer" default:"classic"`
	HighlightStyle   string        `yaml:"highlight_style" default:"github"`
}

type ChoicesConfig struct {
	Field    string        `yaml:"field" default:"GroupName"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
}

type ServerConfig struct {
	Host           string `yaml:"host" default:"0.0.0.0"`
	Port           string `yaml:"port" default:"12600"`
	MaxUploadBytes int    `yaml:"max_upload_bytes" default:"33554432"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

var AppConfig *Config

// Load reads the config file at path over the defaults and applies KABLE_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if os.IsNotExist(err) {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(config, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func LoadConfig(path string) error {
	config, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = config
	return nil
}

// Validate rejects settings that cannot describe a working setup.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "rest":
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	switch c.Assets.Backend {
	case "fs", "s3":
	case "store":
		if c.Store.Backend != "rest" {
			return fmt.Errorf("assets backend %q requires the rest store backend", c.Assets.Backend)
		}
	default:
		return fmt.Errorf("unsupported assets backend %q", c.Assets.Backend)
	}
	if c.Assets.Backend == "s3" && c.Assets.S3.Bucket == "" {
		return fmt.Errorf("assets.s3.bucket is required for the s3 assets backend")
	}
	if c.Lists.Submissions == "" || c.Lists.Content == "" {
		return fmt.Errorf("list names must not be empty")
	}
	return nil
}

// envOverrides maps environment variables (without prefix) to settings.
var envOverrides = map[string]func(*Config) any{
	"SITE_URL":             func(c *Config) any { return &c.Site.URL },
	"SUBMISSIONS_LIST":     func(c *Config) any { return &c.Lists.Submissions },
	"CONTENT_LIST":         func(c *Config) any { return &c.Lists.Content },
	"STORE_BACKEND":        func(c *Config) any { return &c.Store.Backend },
	"SQLITE_PATH":          func(c *Config) any { return &c.Store.SQLitePath },
	"ASSETS_BACKEND":       func(c *Config) any { return &c.Assets.Backend },
	"REST_TOKEN":           func(c *Config) any { return &c.Rest.Token },
	"S3_BUCKET":            func(c *Config) any { return &c.Assets.S3.Bucket },
	"S3_ENDPOINT":          func(c *Config) any { return &c.Assets.S3.Endpoint },
	"S3_ACCESS_KEY_ID":     func(c *Config) any { return &c.Assets.S3.AccessKeyID },
	"S3_ACCESS_KEY_SECRET": func(c *Config) any { return &c.Assets.S3.AccessKeySecret },
	"SUBMISSION_TIMEOUT":   func(c *Config) any { return &c.Submission.Timeout },
	"LOG_LEVEL":            func(c *Config) any { return &c.Logging.Level },
	"LOG_FORMAT":           func(c *Config) any { return &c.Logging.Format },
	"PORT":                 func(c *Config) any { return &c.Server.Port },
}

func applyEnv(config *Config, lookup func(string) (string, bool)) error {
	for name, target := range envOverrides {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		switch p := target(config).(type) {
		case *string:
			*p = value
		case *time.Duration:
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*p = d
		}
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
