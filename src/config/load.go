package config

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// hostPlaceholder in the repository template is replaced with the resolved
// host identifier, so one config file can serve a fleet of hosts.
const hostPlaceholder = "{host}"

// Load reads, expands, parses and validates the config document at path.
// Any error here is a fatal precondition: the caller must exit before taking
// the run lock or touching the store.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ParseBytes builds a Config from a raw YAML document. Exposed separately so
// tests can feed documents without touching the filesystem.
func ParseBytes(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty config document")
	}

	// Expand $(ENV_VAR) placeholders first so credentials can stay out of
	// the file itself.
	expanded := expandEnvVars(string(data))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// finish resolves defaults and derived values, then validates. Called once
// by ParseBytes; the Config is read-only afterwards.
func (c *Config) finish() error {
	if c.Host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Host = hostname
	}
	if !nameRe.MatchString(c.Host) {
		return fmt.Errorf("host %q is not usable as a snapshot tag", c.Host)
	}

	c.Repository = strings.ReplaceAll(c.Repository, hostPlaceholder, c.Host)

	if c.Restic.Binary == "" {
		c.Restic.Binary = DefaultBinary
	}
	if c.Timeouts.Backup == 0 {
		c.Timeouts.Backup = Duration(DefaultBackupTimeout)
	}
	if c.Timeouts.Forget == 0 {
		c.Timeouts.Forget = Duration(DefaultForgetTimeout)
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = Duration(DefaultSettleDelay)
	}
	if c.LockDir == "" {
		c.LockDir = os.TempDir()
	}
	if c.Retention == nil {
		c.Retention = &Retention{
			KeepDaily:   DefaultKeepDaily,
			KeepWeekly:  DefaultKeepWeekly,
			KeepMonthly: DefaultKeepMonthly,
		}
	}

	if c.HealthchecksURL != "" {
		c.HealthchecksURL = strings.TrimRight(c.HealthchecksURL, "/")
		if !strings.HasPrefix(c.HealthchecksURL, "http://") && !strings.HasPrefix(c.HealthchecksURL, "https://") {
			return fmt.Errorf("healthchecks_url %q must begin with http:// or https://", c.HealthchecksURL)
		}
	}

	return c.validate()
}

func (c *Config) validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		// Report YAML key names in error messages.
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	if err := validate.Struct(c); err != nil {
		var msgs []string
		for _, e := range err.(validator.ValidationErrors) {
			msgs = append(msgs, fmt.Sprintf("key %q failed %q validation", e.Namespace(), e.ActualTag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	if c.Password == "" && c.PasswordFile == "" && !c.envCarriesPassword() {
		return fmt.Errorf("store password is not configured (set password, password_file, or a RESTIC_PASSWORD* env entry)")
	}
	if c.Retention.KeepDaily == 0 && c.Retention.KeepWeekly == 0 && c.Retention.KeepMonthly == 0 {
		return fmt.Errorf("retention policy keeps nothing; at least one of keep_daily/keep_weekly/keep_monthly must be positive")
	}
	return nil
}

func (c *Config) envCarriesPassword() bool {
	for key := range c.Env {
		if strings.HasPrefix(key, "RESTIC_PASSWORD") {
			return true
		}
	}
	return false
}
