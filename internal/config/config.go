// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads PanelApp settings from defaults, panelapp.yaml,
// PANELAPP_* environment variables and command line flags, in that order of
// increasing precedence. Viper does the merging; goccy/go-yaml writes the
// default file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of runtime settings.
type Config struct {
	Database struct {
		Type            string        `mapstructure:"type" yaml:"type"`
		Dsn             string        `mapstructure:"dsn" yaml:"dsn"`
		MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	} `mapstructure:"database" yaml:"database"`
	Language string `mapstructure:"language" yaml:"language"`
	Log      struct {
		Level string `mapstructure:"level" yaml:"level"`
	} `mapstructure:"log" yaml:"log"`
	Server struct {
		Addr         string        `mapstructure:"addr" yaml:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
		PageSize     int           `mapstructure:"page_size" yaml:"page_size"`
	} `mapstructure:"server" yaml:"server"`
	API struct {
		// Tokens maps API tokens to usernames.
		Tokens map[string]string `mapstructure:"tokens" yaml:"tokens,omitempty"`
	} `mapstructure:"api" yaml:"api"`
	Status struct {
		HighConfidenceSources []string `mapstructure:"high_confidence_sources" yaml:"high_confidence_sources,omitempty"`
	} `mapstructure:"status" yaml:"status"`
	Exports struct {
		Workers int    `mapstructure:"workers" yaml:"workers"`
		Sink    string `mapstructure:"sink" yaml:"sink"`
	} `mapstructure:"exports" yaml:"exports"`
	Blob struct {
		S3 struct {
			Bucket    string `mapstructure:"bucket" yaml:"bucket,omitempty"`
			Region    string `mapstructure:"region" yaml:"region,omitempty"`
			Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
			PathStyle bool   `mapstructure:"path_style" yaml:"path_style,omitempty"`
			// Static credentials; the default AWS chain is used when empty.
			AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
			SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
		} `mapstructure:"s3" yaml:"s3"`
		SFTP struct {
			Host       string `mapstructure:"host" yaml:"host,omitempty"`
			User       string `mapstructure:"user" yaml:"user,omitempty"`
			Password   string `mapstructure:"password" yaml:"password,omitempty"`
			KeyFile    string `mapstructure:"key_file" yaml:"key_file,omitempty"`
			KnownHosts string `mapstructure:"known_hosts" yaml:"known_hosts,omitempty"`
		} `mapstructure:"sftp" yaml:"sftp"`
	} `mapstructure:"blob" yaml:"blob"`
}

// Defaults returns the default value of every key.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":              "sqlite",
		"database.dsn":               "./panelapp.db",
		"database.max_open_conns":    25,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": "30m",
		"language":                   "en",
		"log.level":                  "info",
		"server.addr":                ":8080",
		"server.read_timeout":        "15s",
		"server.write_timeout":       "60s",
		"server.page_size":           100,
		"exports.workers":            2,
		"exports.sink":               "file://./exports",
	}
}

// GetConfigPath returns the user or system-wide location of panelapp.yaml.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "PanelApp")
		default:
			configDir = "/etc/panelapp"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "panelapp")
	}
	return filepath.Join(configDir, "panelapp.yaml"), nil
}

// LoadConfig merges defaults, the first panelapp.yaml found (or the explicit
// file), PANELAPP_* environment variables and the command's flags into T.
// Flags are bound only when their name is a key of defaults.
// A missing file is not an error; an empty candidate file is reported as
// viper.ConfigFileNotFoundError by viper itself.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string) (T, error) {
	var c T
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("panelapp")
	v.SetConfigType("yaml")
	if configFile != nil && *configFile != "" {
		v.SetConfigFile(*configFile)
	}
	if p, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	if p, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.SetEnvPrefix("panelapp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		_ = v.BindEnv(key)
	}

	if cmd != nil {
		// Only flags named after a config key override it. Subcommand flags
		// such as --status must not shadow a config section.
		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if _, ok := defaults[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(f.Name, f)
			}
		})
		if bindErr != nil {
			return c, bindErr
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// WriteConfigFile writes c to the user or system config path and returns it.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := GetConfigPath(system)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	// May hold API tokens and sftp passwords.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
