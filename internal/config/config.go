// Package config loads npitrack configuration.
//
// Precedence (highest to lowest):
//  1. NPI_* environment variables (a .env file in the working directory is
//     loaded into the environment first)
//  2. the YAML config file
//  3. built-in defaults
//
// Environment variables map onto section.field keys by splitting on the first
// underscore after the prefix:
//
//	NPI_DATABASE_PATH        -> database.path
//	NPI_WORKBOOK_PRODUCT_SHEET -> workbook.product_sheet
//	NPI_SECURITY_UNLOCK_HASH -> security.unlock_hash
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "NPI_"

const maxConfigFileSize = 1024 * 1024

// DefaultExcludedSheets are workbook sheets that never hold a BOM.
var DefaultExcludedSheets = []string{
	"USB DUO", "VCUSB", "GLOVE BOX", "GLOVEBOX", "test", "Dummy",
	"AUDIO AMPLIFIER", "BMB", "Products", "HVAC",
}

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Projects  ProjectsConfig  `koanf:"projects"`
	Workbook  WorkbookConfig  `koanf:"workbook"`
	Checklist ChecklistConfig `koanf:"checklist"`
	Handover  HandoverConfig  `koanf:"handover"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// ProjectsConfig locates the per-project directory trees.
type ProjectsConfig struct {
	Root string `koanf:"root"`
}

// WorkbookConfig describes the master NPI workbook.
type WorkbookConfig struct {
	Path           string   `koanf:"path"`
	ProductSheet   string   `koanf:"product_sheet"`
	ExcludedSheets []string `koanf:"excluded_sheets"`
}

// ChecklistConfig optionally replaces the built-in checklist template.
type ChecklistConfig struct {
	TemplatePath string `koanf:"template_path"`
}

type HandoverConfig struct {
	// OmitChecklist drops the checklist status section from the report.
	OmitChecklist bool   `koanf:"omit_checklist"`
	ReportName    string `koanf:"report_name"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig holds the bcrypt hash of the shared edit-unlock token. An
// empty hash leaves every mutating operation locked.
type SecurityConfig struct {
	UnlockHash string `koanf:"unlock_hash"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads configPath (optional; a missing file is not an error), applies
// environment overrides and fills defaults.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a config holding only defaults.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps NPI_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "npi_projects.db"
	}
	if cfg.Projects.Root == "" {
		cfg.Projects.Root = "Projects"
	}
	if cfg.Workbook.Path == "" {
		cfg.Workbook.Path = "NPI_Project_Data.xlsx"
	}
	if cfg.Workbook.ProductSheet == "" {
		cfg.Workbook.ProductSheet = "Products"
	}
	if cfg.Workbook.ExcludedSheets == nil {
		cfg.Workbook.ExcludedSheets = append([]string(nil), DefaultExcludedSheets...)
	}
	if cfg.Handover.ReportName == "" {
		cfg.Handover.ReportName = "Project_Report.pdf"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:9010"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if strings.ContainsAny(c.Handover.ReportName, `/\`) {
		return fmt.Errorf("handover.report_name must be a file name, got %q", c.Handover.ReportName)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be >= 0")
	}
	return nil
}
