package formsnap

import (
	"fmt"
	"time"

	"github.com/Jumpaku/go-formsnap/restore"
)

const (
	DefaultPrefix    = "DHGSVR"
	DefaultOutputDir = "forms"

	SourceAppsScript = "apps-script"
	SourceFormsAPI   = "forms-api"

	StoreLocal = "local"
	StoreDrive = "drive"
)

// Config holds every setting of a run. It is filled by the command line layer
// and passed explicitly; nothing reads the environment after startup.
type Config struct {
	// FormID is the form fetched when a request names none.
	FormID    string `mapstructure:"form_id"`
	Prefix    string `mapstructure:"prefix"`
	OutputDir string `mapstructure:"output_dir"`

	// Endpoint and APIKey address the Apps Script web app.
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`

	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	Policy        string        `mapstructure:"policy"`

	Source      string `mapstructure:"source"`
	Store       string `mapstructure:"store"`
	DriveFolder string `mapstructure:"drive_folder"`
}

func DefaultConfig() Config {
	return Config{
		Prefix:        DefaultPrefix,
		OutputDir:     DefaultOutputDir,
		Timeout:       30 * time.Second,
		MaxRetries:    restore.DefaultMaxRetries,
		RetryInterval: restore.DefaultInitialInterval,
		Policy:        string(restore.PolicyOverwrite),
		Source:        SourceAppsScript,
		Store:         StoreLocal,
	}
}

// Validate checks the settings that do not depend on the command being run.
func (c Config) Validate() error {
	switch c.Source {
	case SourceAppsScript, SourceFormsAPI:
	default:
		return usageErrorf("unknown source %q", c.Source)
	}
	switch c.Store {
	case StoreLocal:
	case StoreDrive:
		if c.DriveFolder == "" {
			return usageErrorf("drive store requires a drive folder")
		}
	default:
		return usageErrorf("unknown store %q", c.Store)
	}
	if _, err := restore.ParsePolicy(c.Policy); err != nil {
		return usageErrorf("%v", err)
	}
	if c.MaxRetries < 0 {
		return usageErrorf("max retries must not be negative: %d", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return usageErrorf("timeout must not be negative: %s", c.Timeout)
	}
	return nil
}

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
