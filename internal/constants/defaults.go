package constants

// Mailbox collections
const (
	PendingCollection = "pendingMessages"
	PrintedCollection = "printedMessages"
)

// Store identity defaults, used for access-control attribution
const (
	DefaultPrintServerUID = "print-server"
	DefaultReceiverUID    = "discord-receiver"
)

// Submission defaults
const (
	DefaultGatewaySource = "discord"
	DefaultSenderHandle  = "anonymous"
	DefaultCommandName   = "print"
	MaxMessageRunes      = 2000
)

// Printer defaults
const (
	DefaultPrinterVendorID  = 0x0483
	DefaultPrinterProductID = 0x070B
	DefaultFeedLines        = 2
)

// Startup and retry values
const (
	DefaultStartupRetryAttempts  = 5
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 30000
	DefaultDatabaseRetryAttempts = 3
)

// Server and scheduler values
const (
	DefaultServerPort              = 8085
	DefaultGracefulShutdownSec     = 10
	DefaultServerReadTimeoutSec    = 15
	DefaultServerWriteTimeoutSec   = 15
	DefaultServerIdleTimeoutSec    = 60
	DefaultRetentionDays           = 30
	CleanupSchedulerIntervalHours  = 24
	DefaultAnomalyCheckIntervalSec = 300
	DefaultAnomalyWindowHours      = 24
	DefaultJournalPageSize         = 50
	MaxJournalPageSize             = 500
)

// Stream values
const (
	DefaultStreamMaxEventBytes = 8 * 1024 * 1024
	DefaultStreamReconnectMs   = 500
)

// DefaultArchiveTimeoutSec bounds the archive and delete of a printed item,
// which run even after shutdown began.
const DefaultArchiveTimeoutSec = 10

const ServerErrorChannelSize = 2

// Journal encryption salt. Changing it makes existing encrypted rows unreadable.
const JournalEncryptionSalt = "papercrumpler-journal-v1"
