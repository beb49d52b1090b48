package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LookupFunc resolves a variable name. An empty value counts as unset.
type LookupFunc func(name string) (string, bool)

// Load reads configuration from the process environment. Variables the
// environment leaves unset are taken from the dotenv files, earlier files
// first; missing files are skipped.
func Load(dotenvFiles ...string) (*Config, error) {
	lookup, err := envWithDotenv(dotenvFiles)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return LoadFrom(lookup)
}

// LoadFrom builds a Config from lookup, applies defaults and validates it.
// Every unreadable variable is reported, not only the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func envWithDotenv(files []string) (LookupFunc, error) {
	fromFiles := make(map[string]string)
	for _, name := range files {
		vals, err := godotenv.Read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for k, v := range vals {
			if _, seen := fromFiles[k]; !seen {
				fromFiles[k] = v
			}
		}
	}

	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v, true
		}
		v, ok := fromFiles[name]
		return v, ok && v != ""
	}, nil
}

// envTag is the parsed form of a field's env, default and required tags.
// env lists the variable name followed by accepted aliases.
type envTag struct {
	names    []string
	fallback string
	required bool
}

func parseTag(f reflect.StructField) (envTag, bool) {
	env := f.Tag.Get("env")
	if env == "" {
		return envTag{}, false
	}
	return envTag{
		names:    strings.Split(env, ","),
		fallback: f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}, true
}

// resolve returns the first set name and its value, or the default.
func (t envTag) resolve(lookup LookupFunc) (name, value string, err error) {
	for _, n := range t.names {
		if v, ok := lookup(n); ok {
			return n, v, nil
		}
	}
	if t.required {
		return t.names[0], "", fmt.Errorf("required environment variable %s is not set", strings.Join(t.names, " or "))
	}
	return t.names[0], t.fallback, nil
}

func populate(v reflect.Value, lookup LookupFunc) error {
	var errs []error
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		dst := v.Field(i)
		if !dst.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			errs = append(errs, populate(dst, lookup))
			continue
		}

		tag, ok := parseTag(field)
		if !ok {
			continue
		}
		name, raw, err := tag.resolve(lookup)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if raw == "" {
			continue
		}

		parse, ok := parsers[field.Type]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unsupported field type %s", name, field.Type))
			continue
		}
		val, err := parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, raw, err))
			continue
		}
		dst.Set(reflect.ValueOf(val))
	}

	return errors.Join(errs...)
}

type parser func(string) (any, error)

func typed[T any](parse func(string) (T, error)) parser {
	return func(s string) (any, error) { return parse(s) }
}

var parsers = map[reflect.Type]parser{
	reflect.TypeFor[string]():        typed(func(s string) (string, error) { return s, nil }),
	reflect.TypeFor[int]():           typed(strconv.Atoi),
	reflect.TypeFor[float64]():       typed(parseFloat),
	reflect.TypeFor[bool]():          typed(strconv.ParseBool),
	reflect.TypeFor[time.Duration](): typed(time.ParseDuration),
	reflect.TypeFor[[]string]():      typed(splitList),
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// splitList reads a comma-separated list, dropping blank entries.
func splitList(s string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.ConnectTimeout <= 0 {
		errs = append(errs, "DB_CONNECT_TIMEOUT must be positive")
	}

	// Import validation
	if c.Import.SourceFile == "" && c.Import.SourceURL == "" {
		errs = append(errs, "one of IMPORT_SOURCE_FILE or IMPORT_SOURCE_URL must be set")
	}
	if c.Import.SourceURL != "" {
		if u, err := url.Parse(c.Import.SourceURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("IMPORT_SOURCE_URL (%q) must be an http(s) URL", c.Import.SourceURL))
		}
	}
	if c.Import.SourceName == "" {
		errs = append(errs, "IMPORT_SOURCE_NAME must not be empty")
	}
	if c.Import.DuplicateThreshold <= 0 || c.Import.DuplicateThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("IMPORT_DUPLICATE_THRESHOLD (%v) must be between 0 and 1 exclusive",
			c.Import.DuplicateThreshold))
	}
	if c.Import.MinStudents <= 0 {
		errs = append(errs, "IMPORT_MIN_STUDENTS must be positive")
	}
	if c.Import.HTTPTimeout <= 0 {
		errs = append(errs, "IMPORT_HTTP_TIMEOUT must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}

	// Ranking validation
	if c.Ranking.TopN <= 0 {
		errs = append(errs, "RANKING_TOP_N must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateServe checks the settings only the serve command needs.
// The admin API can trigger writes, so it refuses to start unprotected
// unless REQUIRE_API_KEY is explicitly false.
func (c *Config) ValidateServe() error {
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		return fmt.Errorf("REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Import: {SourceFile: %q, SourceURL: %q, SourceName: %q, DuplicateThreshold: %v, MinStudents: %d}, ",
		c.Import.SourceFile, c.Import.SourceURL, c.Import.SourceName, c.Import.DuplicateThreshold, c.Import.MinStudents))
	b.WriteString(fmt.Sprintf("Ranking: {TopN: %d}, ", c.Ranking.TopN))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: [%d MASKED]}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
