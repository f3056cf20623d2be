package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/acnlabs/agentmigrate"
)

type RedisConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type MigrationConfig struct {
	BatchSize          int64         `mapstructure:"batch_size" yaml:"batch_size"`
	RepairIndexes      *bool         `mapstructure:"repair_indexes" yaml:"repair_indexes"`
	LockTTL            time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	VerifyBeforeDelete *bool         `mapstructure:"verify_before_delete" yaml:"verify_before_delete"`
}

// JournalConfig is the journal backend plus a switch to turn run history off.
type JournalConfig struct {
	agentmigrate.JournalConfig `mapstructure:",squash" yaml:",inline"`

	Disabled bool `mapstructure:"disabled" yaml:"disabled"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

type ConfigDoc struct {
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var raw map[string]interface{}
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return c.decode(raw)
}

// decode maps the raw document onto c; durations may be written as "10m".
func (c *ConfigDoc) decode(raw map[string]interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
		Result:           c,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func (c *ConfigDoc) parseLogLevel() (agentmigrate.LogLevel, error) {
	level, ok := agentmigrate.ParseLogLevel(strings.ToLower(strings.TrimSpace(c.Logging.Level)))
	if !ok {
		return level, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
	return level, nil
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	var logger *agentmigrate.Logger
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))

	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	switch format {
	case "json":
		logger = agentmigrate.NewJSONLogger(level)
	case "color", "colour":
		logger = agentmigrate.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = agentmigrate.NewColorLogger(level)
		} else {
			logger = agentmigrate.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	agentmigrate.SetDefaultLogger(logger)
	agentmigrate.EnableMasking(maskingEnabled)

	levelStr := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if levelStr == "" {
		levelStr = "info"
	}
	logger.Debug("logging configured",
		"level", levelStr,
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return nil
}
