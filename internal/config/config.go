package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"papercrumpler/internal/constants"
	"papercrumpler/internal/models"
	"papercrumpler/internal/security"
	"papercrumpler/internal/tracing"

	"github.com/joho/godotenv"
)

// DefaultConfigPath may be absent; any other path must exist.
const DefaultConfigPath = "config.json"

// Environment overrides
const (
	EnvDatabaseURL     = "PAPERCRUMPLER_DATABASE_URL"
	EnvCredentialsFile = "PAPERCRUMPLER_CREDENTIALS_FILE"
	EnvAuthUID         = "PAPERCRUMPLER_AUTH_UID"
	EnvDiscordToken    = "DISCORD_BOT_TOKEN"
	EnvDiscordGuildID  = "DISCORD_GUILD_ID"
	EnvJournalPath     = "JOURNAL_PATH"
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvPrinterDryRun   = "PRINTER_DRY_RUN"
)

var (
	ErrMissingDatabaseURL = models.ConfigError{Message: "missing database URL (set store.database_url or " + EnvDatabaseURL + ")"}
	ErrMissingCredentials = models.ConfigError{Message: "missing credentials file (set store.credentials_file or " + EnvCredentialsFile + ")"}
	ErrMissingBotToken    = models.ConfigError{Message: "missing Discord bot token (set " + EnvDiscordToken + ")"}
	ErrMissingGuildID     = models.ConfigError{Message: "missing Discord guild id (set discord.guild_id or " + EnvDiscordGuildID + ")"}
)

var commandNamePattern = regexp.MustCompile(`^[-_\p{Ll}\p{N}]{1,32}$`)

// LoadConfig reads path, loads .env when present, applies environment
// overrides and fills defaults. Per-process checks are left to
// ValidatePrintServer and ValidateReceiver.
func LoadConfig(path string) (*models.Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cfg models.Config
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvironmentOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func readFile(path string, cfg *models.Config) error {
	if err := security.ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath {
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) error {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv(EnvCredentialsFile); v != "" {
		c.Store.CredentialsFile = v
	}
	if v := os.Getenv(EnvAuthUID); v != "" {
		c.Store.AuthUID = v
	}
	// SECURITY: the bot token should only come from the environment
	if v := os.Getenv(EnvDiscordToken); v != "" {
		c.Discord.BotToken = v
	}
	if v := os.Getenv(EnvDiscordGuildID); v != "" {
		c.Discord.GuildID = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		c.Journal.Path = v
		c.Journal.Enabled = true
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid %s %q: %v", EnvPort, v, err)}
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvPrinterDryRun); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid %s %q: %v", EnvPrinterDryRun, v, err)}
		}
		c.Printer.DryRun = dryRun
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Printer.VendorID == "" {
		c.Printer.VendorID = fmt.Sprintf("0x%04x", constants.DefaultPrinterVendorID)
	}
	if c.Printer.ProductID == "" {
		c.Printer.ProductID = fmt.Sprintf("0x%04x", constants.DefaultPrinterProductID)
	}
	if c.Printer.FeedLines <= 0 {
		c.Printer.FeedLines = constants.DefaultFeedLines
	}

	if c.Discord.CommandName == "" {
		c.Discord.CommandName = constants.DefaultCommandName
	}
	if c.Discord.Source == "" {
		c.Discord.Source = constants.DefaultGatewaySource
	}

	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = constants.CleanupSchedulerIntervalHours
	}
	if c.Server.AnomalyCheckSec <= 0 {
		c.Server.AnomalyCheckSec = constants.DefaultAnomalyCheckIntervalSec
	}
	if c.Server.AnomalyWindowHours <= 0 {
		c.Server.AnomalyWindowHours = constants.DefaultAnomalyWindowHours
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultStartupRetryAttempts
	}
}

// ValidatePrintServer checks the sections the print server needs and sets
// its default database identity.
func ValidatePrintServer(c *models.Config) error {
	if err := validateStore(&c.Store, constants.DefaultPrintServerUID); err != nil {
		return err
	}

	if !c.Printer.DryRun {
		if _, err := ParseUSBID(c.Printer.VendorID); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid printer vendor_id: %v", err)}
		}
		if _, err := ParseUSBID(c.Printer.ProductID); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid printer product_id: %v", err)}
		}
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return models.ConfigError{Message: "journal.path is required when the journal is enabled"}
		}
		if err := security.ValidateFilePath(c.Journal.Path); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid journal path: %v", err)}
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("server port out of range: %d", c.Server.Port)}
	}

	if err := tracing.Validate(c.Tracing); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid tracing config: %v", err)}
	}
	return nil
}

// ValidateReceiver checks the sections the Discord receiver needs and sets
// its default database identity.
func ValidateReceiver(c *models.Config) error {
	if err := validateStore(&c.Store, constants.DefaultReceiverUID); err != nil {
		return err
	}
	if strings.TrimSpace(c.Discord.BotToken) == "" {
		return ErrMissingBotToken
	}
	if strings.TrimSpace(c.Discord.GuildID) == "" {
		return ErrMissingGuildID
	}
	if !commandNamePattern.MatchString(c.Discord.CommandName) {
		return models.ConfigError{Message: fmt.Sprintf("invalid command name %q: use 1-32 lowercase letters, digits, - or _", c.Discord.CommandName)}
	}
	return nil
}

func validateStore(s *models.StoreConfig, defaultUID string) error {
	if s.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if !strings.HasPrefix(s.DatabaseURL, "https://") {
		return models.ConfigError{Message: fmt.Sprintf("database URL must use https: %q", s.DatabaseURL)}
	}
	if s.CredentialsFile == "" {
		return ErrMissingCredentials
	}
	if err := security.ValidateFilePath(s.CredentialsFile); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid credentials path: %v", err)}
	}
	if s.AuthUID == "" {
		s.AuthUID = defaultUID
	}
	return nil
}

// ParseUSBID parses a USB vendor or product id written as hex ("0x0483")
// or decimal ("1155").
func ParseUSBID(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("parse usb id %q: %w", s, err)
	}
	return uint16(v), nil
}
