package models

// Config holds the application configuration shared by the print server and
// the Discord receiver. Each process validates only the sections it uses.
type Config struct {
	Store         StoreConfig   `json:"store"`
	Printer       PrinterConfig `json:"printer"`
	Discord       DiscordConfig `json:"discord"`
	Journal       JournalConfig `json:"journal"`
	Server        ServerConfig  `json:"server"`
	Retry         RetryConfig   `json:"retry"`
	Tracing       TracingConfig `json:"tracing"`
	LogLevel      string        `json:"log_level"`
	RetentionDays int           `json:"retentionDays"`
}

// StoreConfig holds realtime database settings
type StoreConfig struct {
	DatabaseURL     string `json:"database_url"`
	CredentialsFile string `json:"credentials_file"`
	// AuthUID is the uid presented to the database security rules.
	AuthUID string `json:"auth_uid"`
}

// PrinterConfig identifies the USB printer. IDs accept "0x0483" or "1155".
type PrinterConfig struct {
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
	FeedLines int    `json:"feed_lines"`
	DryRun    bool   `json:"dry_run"`
}

// DiscordConfig holds the receiver's bot settings
type DiscordConfig struct {
	BotToken    string `json:"bot_token"`
	GuildID     string `json:"guild_id"`
	CommandName string `json:"command_name"`
	Source      string `json:"source"`
}

// JournalConfig holds the local print journal settings
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ServerConfig holds admin HTTP and background job settings
type ServerConfig struct {
	Port                 int `json:"port"`
	CleanupIntervalHours int `json:"cleanupIntervalHours"`
	AnomalyCheckSec      int `json:"anomalyCheckSec"`
	AnomalyWindowHours   int `json:"anomalyWindowHours"`
}

// RetryConfig holds startup retry settings
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
