package config

import (
	"path/filepath"
	"sort"
	"time"
)

// DefaultPath is where the CLI looks for the config document unless
// --config says otherwise.
const DefaultPath = "/etc/volume-backup/config.yml"

// Defaults applied by Load when the config document leaves a key unset.
const (
	DefaultBinary        = "restic"
	DefaultBackupTimeout = 1 * time.Hour
	DefaultForgetTimeout = 2 * time.Hour
	DefaultSettleDelay   = 2 * time.Second
	DefaultKeepDaily     = 7
	DefaultKeepWeekly    = 5
	DefaultKeepMonthly   = 12
)

// VolumeDataDir is the conventional subdirectory holding a volume's payload
// under <volume_root>/<volume>/.
const VolumeDataDir = "_data"

// Config is the immutable, typed snapshot of one run's operational
// parameters. Load is the only producer; nothing mutates it afterwards.
type Config struct {
	// Host identifies this machine in snapshot tags and in the run-lock file
	// name. Defaults to the OS hostname.
	Host string `yaml:"host"`

	// Repository is the restic repository location. A {host} placeholder is
	// substituted with Host at load time.
	Repository string `yaml:"repository" validate:"required"`

	// Password and PasswordFile map to RESTIC_PASSWORD / RESTIC_PASSWORD_FILE
	// in the store subprocess environment. Env carries any further engine
	// variables (S3 credentials and the like); all of it is passed explicitly
	// per call, never exported into our own environment.
	Password     string            `yaml:"password"`
	PasswordFile string            `yaml:"password_file"`
	Env          map[string]string `yaml:"env"`

	// VolumeRoot is the base path under which every volume lives at
	// <VolumeRoot>/<volume>/_data.
	VolumeRoot string `yaml:"volume_root" validate:"required"`

	// HealthchecksURL is the liveness endpoint base. Optional; when set it
	// must begin with http:// or https:// (checked at load, fatal otherwise).
	HealthchecksURL string `yaml:"healthchecks_url"`

	// Retention distinguishes absent (defaults apply) from explicitly
	// all-zero (rejected: such a policy would keep nothing).
	Retention *Retention  `yaml:"retention"`
	Projects  ProjectList `yaml:"projects" validate:"required,min=1"`

	Restic   Restic   `yaml:"restic"`
	Timeouts Timeouts `yaml:"timeouts"`

	// SettleDelay is the pause between a successful backup and the retention
	// step, giving the store time to release its own locks.
	SettleDelay Duration `yaml:"settle_delay"`

	// LockDir holds the run-lock file. Defaults to the OS temp directory.
	LockDir string `yaml:"lock_dir"`
}

// Retention is the keep-daily/weekly/monthly triple applied to every project.
type Retention struct {
	KeepDaily   int `yaml:"keep_daily" validate:"min=0"`
	KeepWeekly  int `yaml:"keep_weekly" validate:"min=0"`
	KeepMonthly int `yaml:"keep_monthly" validate:"min=0"`
}

// Restic holds engine tuning recognized by the store client.
type Restic struct {
	// Binary is the engine executable; a bare name is looked up on PATH.
	Binary string `yaml:"binary"`
	// CacheDir is passed as --cache-dir when set.
	CacheDir string `yaml:"cache_dir"`
	// UploadLimitKiB rate-limits backup uploads (--limit-upload).
	UploadLimitKiB int `yaml:"upload_limit_kib" validate:"min=0"`
	// OneFileSystem keeps the backup from crossing filesystem boundaries.
	OneFileSystem bool `yaml:"one_file_system"`
}

// Timeouts bounds the long-running store operations. The forget/prune budget
// is deliberately larger than the backup budget; pruning rewrites pack files.
type Timeouts struct {
	Backup Duration `yaml:"backup"`
	Forget Duration `yaml:"forget"`
}

// VolumePath resolves a volume name to its conventional data directory.
func (c *Config) VolumePath(volume string) string {
	return filepath.Join(c.VolumeRoot, volume, VolumeDataDir)
}

// StoreEnv builds the engine subprocess environment variables from the
// configured credentials. The returned slice is in KEY=VALUE form.
func (c *Config) StoreEnv() []string {
	env := make([]string, 0, len(c.Env)+3)
	env = append(env, "RESTIC_REPOSITORY="+c.Repository)
	if c.Password != "" {
		env = append(env, "RESTIC_PASSWORD="+c.Password)
	}
	if c.PasswordFile != "" {
		env = append(env, "RESTIC_PASSWORD_FILE="+c.PasswordFile)
	}
	for _, key := range sortedKeys(c.Env) {
		env = append(env, key+"="+c.Env[key])
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
