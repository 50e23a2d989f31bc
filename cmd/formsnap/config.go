package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Jumpaku/go-formsnap"
)

const (
	envPrefix      = "FORMSNAP"
	configFileName = "formsnap"
)

// configKeys maps configuration keys to the persistent flags that override them.
var configKeys = map[string]string{
	"form_id":        "form-id",
	"prefix":         "prefix",
	"output_dir":     "output-dir",
	"endpoint":       "endpoint",
	"api_key":        "api-key",
	"timeout":        "timeout",
	"max_retries":    "max-retries",
	"retry_interval": "retry-interval",
	"policy":         "policy",
	"source":         "source",
	"store":          "store",
	"drive_folder":   "drive-folder",
}

func setDefaults(v *viper.Viper) {
	d := formsnap.DefaultConfig()
	v.SetDefault("form_id", d.FormID)
	v.SetDefault("prefix", d.Prefix)
	// An empty output directory is resolved per store, see resolveOutputDir.
	v.SetDefault("output_dir", "")
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_interval", d.RetryInterval)
	v.SetDefault("policy", d.Policy)
	v.SetDefault("source", d.Source)
	v.SetDefault("store", d.Store)
	v.SetDefault("drive_folder", d.DriveFolder)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key := range configKeys {
		_ = v.BindEnv(key)
	}
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, flag := range configKeys {
		if f := flags.Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// loadConfig merges defaults, the .env file, environment variables, the config
// file and flags, later sources winning.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, cfgFile, cwd string) (formsnap.Config, error) {
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return formsnap.Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	setDefaults(v)
	bindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return formsnap.Config{}, fmt.Errorf("%w: failed to read config file %s: %v", formsnap.ErrUsage, cfgFile, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(cwd)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return formsnap.Config{}, fmt.Errorf("%w: failed to read config file: %v", formsnap.ErrUsage, err)
			}
		}
	}

	bindFlags(v, flags)

	var cfg formsnap.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return formsnap.Config{}, fmt.Errorf("%w: unable to decode configuration: %v", formsnap.ErrUsage, err)
	}
	cfg.OutputDir = resolveOutputDir(cfg)
	if err := cfg.Validate(); err != nil {
		return formsnap.Config{}, err
	}
	return cfg, nil
}

// resolveOutputDir places local snapshots next to the executable unless a
// directory was configured. Drive snapshots go to a folder below the root.
func resolveOutputDir(cfg formsnap.Config) string {
	if cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	if cfg.Store == formsnap.StoreDrive {
		return formsnap.DefaultOutputDir
	}
	exe, err := os.Executable()
	if err != nil {
		return formsnap.DefaultOutputDir
	}
	return filepath.Join(filepath.Dir(exe), formsnap.DefaultOutputDir)
}
