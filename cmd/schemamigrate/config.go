package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grantwise/schemamigrate/internal/common"
	"github.com/grantwise/schemamigrate/internal/ledger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoggingConfig selects log verbosity and rendering.
type LoggingConfig struct {
	Level         string `yaml:"level"`          // error, warn, info, debug
	Format        string `yaml:"format"`         // text, json, color
	MaskSensitive *bool  `yaml:"mask_sensitive"` // enable/disable DSN credential masking
	Color         *bool  `yaml:"color"`          // enable/disable colorized status output
}

// ConfigDoc is the yaml configuration document for the CLI.
type ConfigDoc struct {
	MigrateDir string                 `yaml:"migrate_dir"`
	Store      map[string]interface{} `yaml:"store"`
	Logging    LoggingConfig          `yaml:"logging"`
}

// Load reads and parses the configuration document at path.
func (d *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// #nosec G304 -- path comes from the --config flag
	raw, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, d); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ConfigureLogging installs the default logger per the logging block.
func (d *ConfigDoc) ConfigureLogging() {
	level := common.ParseLogLevel(strings.TrimSpace(d.Logging.Level))
	var logger *common.Logger
	switch strings.TrimSpace(d.Logging.Format) {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color":
		logger = common.NewColorLogger(level)
	default:
		logger = common.NewLogger(level)
	}

	// Masking defaults to enabled; the config can opt out.
	maskingEnabled := true
	if d.Logging.MaskSensitive != nil {
		maskingEnabled = *d.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	common.EnableMasking(maskingEnabled)

	common.SetDefaultLogger(logger)
}

// ColorEnabled reports whether status output should be colorized.
func (d *ConfigDoc) ColorEnabled() bool {
	return d.Logging.Color != nil && *d.Logging.Color
}

// runContext resolves the config document, migration directory, and
// ledger config shared by every command. A missing config file is not
// fatal; defaults apply.
type runContext struct {
	Doc       ConfigDoc
	Dir       string
	LedgerCfg ledger.Config
}

func loadRunContext() (*runContext, error) {
	v := viper.GetViper()
	configPath := strings.TrimSpace(v.GetString("config"))

	rc := &runContext{}
	if configPath != "" {
		if err := rc.Doc.Load(configPath); err == nil {
			rc.Doc.ConfigureLogging()
			rc.Dir = strings.TrimSpace(rc.Doc.MigrateDir)
			if rc.Dir == "" {
				rc.Dir = filepath.Dir(configPath)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if rc.Dir == "" {
		rc.Dir = "./migrations"
	}
	// Normalize to absolute path to avoid working-directory surprises
	if abs, err := filepath.Abs(rc.Dir); err == nil {
		rc.Dir = abs
	}

	if len(rc.Doc.Store) > 0 {
		cfg, err := ledger.DecodeConfig(rc.Doc.Store)
		if err != nil {
			return nil, err
		}
		rc.LedgerCfg = cfg
	}
	if strings.TrimSpace(rc.LedgerCfg.Driver) == "" {
		// Default to a sqlite ledger alongside the migrations
		rc.LedgerCfg.Driver = ledger.DriverSqlite
		rc.LedgerCfg.SQLite.Path = filepath.Join(rc.Dir, ledger.DefaultDBFileName)
	}
	return rc, nil
}

// timeoutFromFlags parses the per-migration timeout flag; empty disables it.
func timeoutFromFlags() (time.Duration, error) {
	raw := strings.TrimSpace(viper.GetViper().GetString("timeout"))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	return d, nil
}
