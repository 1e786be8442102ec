package config

import (
	"time"

	"github.com/spf13/viper"
)

// EchoServer holds the HTTP listener configuration.
type EchoServer struct {
	ListenAddress                  string
	HideInternalServerErrorDetails bool
	EnableMetricsMiddleware        bool
}

// Logger holds the zerolog configuration.
type Logger struct {
	Level              string
	PrettyPrintConsole bool
}

// Database holds the SQLite configuration. The store keeps the durable
// cross-domain records (message log, pending transfers, pending operations).
type Database struct {
	Path string
}

// Auth maps static bearer tokens onto caller roles. Empty tokens disable
// the corresponding role entirely.
type Auth struct {
	AdminToken  string
	KeeperToken string
}

// Vault holds the hub ledger parameters.
type Vault struct {
	LocalDomain        uint32
	HubAddress         string
	FeeSink            string
	DepositCap         string
	BufferBps          int64
	BufferEnabled      bool
	ManagementFeeBps   int64
	MaxFeeBps          int64
	FeeTimelock        time.Duration
	CrossDomainTimeout time.Duration
	SettlementGrace    time.Duration
}

// Messenger holds the cross-domain messaging parameters.
type Messenger struct {
	MessageExpiry time.Duration
	MaxRetries    int
}

// Bridge holds the asset bridge parameters.
type Bridge struct {
	MinAmount     string
	MaxAmount     string
	Timeout       time.Duration
	MaxRetryCount int
}

// Relay holds the endpoints of the external message-relay and burn/mint
// protocols. Empty URLs select the in-process loopback relay, useful for
// local development and tests.
type Relay struct {
	MailboxURL        string
	TokenMessengerURL string
	GasPayment        string
}

// Rebalance holds the rebalance engine parameters.
type Rebalance struct {
	Cooldown                time.Duration
	DomainCooldown          time.Duration
	MinYieldDifferentialBps int64
	MinMoveAmount           string
	MaxMoveAmount           string
	MaxCostUSD              int64
	CostPerLegUSD           int64
	MaxPerWindow            int
	RateLimitWindow         time.Duration
	AutoInterval            time.Duration
	AutoEnabled             bool
}

// Server is the root configuration struct, resolved once at startup.
type Server struct {
	Echo      EchoServer
	Logger    Logger
	DB        Database
	Auth      Auth
	Vault     Vault
	Messenger Messenger
	Bridge    Bridge
	Relay     Relay
	Rebalance Rebalance
}

// DefaultServiceConfigFromEnv returns the server config with defaults
// applied and AUTOUSD_* environment overrides bound through viper.
func DefaultServiceConfigFromEnv() Server {
	v := viper.New()
	v.SetEnvPrefix("AUTOUSD")
	v.AutomaticEnv()

	v.SetDefault("SERVER_LISTEN_ADDRESS", ":8080")
	v.SetDefault("SERVER_HIDE_INTERNAL_ERRORS", true)
	v.SetDefault("SERVER_ENABLE_METRICS", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY_PRINT_CONSOLE", false)

	v.SetDefault("DB_PATH", "file:autousd.db")

	v.SetDefault("AUTH_ADMIN_TOKEN", "")
	v.SetDefault("AUTH_KEEPER_TOKEN", "")

	v.SetDefault("VAULT_LOCAL_DOMAIN", 1)
	v.SetDefault("VAULT_HUB_ADDRESS", "0x0000000000000000000000000000000000000001")
	v.SetDefault("VAULT_FEE_SINK", "0x0000000000000000000000000000000000000002")
	v.SetDefault("VAULT_DEPOSIT_CAP", "0")
	v.SetDefault("VAULT_BUFFER_BPS", 500)
	v.SetDefault("VAULT_BUFFER_ENABLED", true)
	v.SetDefault("VAULT_MANAGEMENT_FEE_BPS", 50)
	v.SetDefault("VAULT_MAX_FEE_BPS", 200)
	v.SetDefault("VAULT_FEE_TIMELOCK", 48*time.Hour)
	v.SetDefault("VAULT_CROSS_DOMAIN_TIMEOUT", 24*time.Hour)
	v.SetDefault("VAULT_SETTLEMENT_GRACE", 72*time.Hour)

	v.SetDefault("MESSENGER_MESSAGE_EXPIRY", time.Hour)
	v.SetDefault("MESSENGER_MAX_RETRIES", 3)

	v.SetDefault("BRIDGE_MIN_AMOUNT", "1")
	v.SetDefault("BRIDGE_MAX_AMOUNT", "1000000000000")
	v.SetDefault("BRIDGE_TIMEOUT", 24*time.Hour)
	v.SetDefault("BRIDGE_MAX_RETRY_COUNT", 3)

	v.SetDefault("RELAY_MAILBOX_URL", "")
	v.SetDefault("RELAY_TOKEN_MESSENGER_URL", "")
	v.SetDefault("RELAY_GAS_PAYMENT", "0")

	v.SetDefault("REBALANCE_COOLDOWN", 6*time.Hour)
	v.SetDefault("REBALANCE_DOMAIN_COOLDOWN", 12*time.Hour)
	v.SetDefault("REBALANCE_MIN_YIELD_DIFFERENTIAL_BPS", 100)
	v.SetDefault("REBALANCE_MIN_MOVE_AMOUNT", "100")
	v.SetDefault("REBALANCE_MAX_MOVE_AMOUNT", "1000000")
	v.SetDefault("REBALANCE_MAX_COST_USD", 50)
	v.SetDefault("REBALANCE_COST_PER_LEG_USD", 15)
	v.SetDefault("REBALANCE_MAX_PER_WINDOW", 4)
	v.SetDefault("REBALANCE_RATE_LIMIT_WINDOW", 24*time.Hour)
	v.SetDefault("REBALANCE_AUTO_INTERVAL", time.Hour)
	v.SetDefault("REBALANCE_AUTO_ENABLED", false)

	return Server{
		Echo: EchoServer{
			ListenAddress:                  v.GetString("SERVER_LISTEN_ADDRESS"),
			HideInternalServerErrorDetails: v.GetBool("SERVER_HIDE_INTERNAL_ERRORS"),
			EnableMetricsMiddleware:        v.GetBool("SERVER_ENABLE_METRICS"),
		},
		Logger: Logger{
			Level:              v.GetString("LOG_LEVEL"),
			PrettyPrintConsole: v.GetBool("LOG_PRETTY_PRINT_CONSOLE"),
		},
		DB: Database{
			Path: v.GetString("DB_PATH"),
		},
		Auth: Auth{
			AdminToken:  v.GetString("AUTH_ADMIN_TOKEN"),
			KeeperToken: v.GetString("AUTH_KEEPER_TOKEN"),
		},
		Vault: Vault{
			LocalDomain:        v.GetUint32("VAULT_LOCAL_DOMAIN"),
			HubAddress:         v.GetString("VAULT_HUB_ADDRESS"),
			FeeSink:            v.GetString("VAULT_FEE_SINK"),
			DepositCap:         v.GetString("VAULT_DEPOSIT_CAP"),
			BufferBps:          v.GetInt64("VAULT_BUFFER_BPS"),
			BufferEnabled:      v.GetBool("VAULT_BUFFER_ENABLED"),
			ManagementFeeBps:   v.GetInt64("VAULT_MANAGEMENT_FEE_BPS"),
			MaxFeeBps:          v.GetInt64("VAULT_MAX_FEE_BPS"),
			FeeTimelock:        v.GetDuration("VAULT_FEE_TIMELOCK"),
			CrossDomainTimeout: v.GetDuration("VAULT_CROSS_DOMAIN_TIMEOUT"),
			SettlementGrace:    v.GetDuration("VAULT_SETTLEMENT_GRACE"),
		},
		Messenger: Messenger{
			MessageExpiry: v.GetDuration("MESSENGER_MESSAGE_EXPIRY"),
			MaxRetries:    v.GetInt("MESSENGER_MAX_RETRIES"),
		},
		Bridge: Bridge{
			MinAmount:     v.GetString("BRIDGE_MIN_AMOUNT"),
			MaxAmount:     v.GetString("BRIDGE_MAX_AMOUNT"),
			Timeout:       v.GetDuration("BRIDGE_TIMEOUT"),
			MaxRetryCount: v.GetInt("BRIDGE_MAX_RETRY_COUNT"),
		},
		Relay: Relay{
			MailboxURL:        v.GetString("RELAY_MAILBOX_URL"),
			TokenMessengerURL: v.GetString("RELAY_TOKEN_MESSENGER_URL"),
			GasPayment:        v.GetString("RELAY_GAS_PAYMENT"),
		},
		Rebalance: Rebalance{
			Cooldown:                v.GetDuration("REBALANCE_COOLDOWN"),
			DomainCooldown:          v.GetDuration("REBALANCE_DOMAIN_COOLDOWN"),
			MinYieldDifferentialBps: v.GetInt64("REBALANCE_MIN_YIELD_DIFFERENTIAL_BPS"),
			MinMoveAmount:           v.GetString("REBALANCE_MIN_MOVE_AMOUNT"),
			MaxMoveAmount:           v.GetString("REBALANCE_MAX_MOVE_AMOUNT"),
			MaxCostUSD:              v.GetInt64("REBALANCE_MAX_COST_USD"),
			CostPerLegUSD:           v.GetInt64("REBALANCE_COST_PER_LEG_USD"),
			MaxPerWindow:            v.GetInt("REBALANCE_MAX_PER_WINDOW"),
			RateLimitWindow:         v.GetDuration("REBALANCE_RATE_LIMIT_WINDOW"),
			AutoInterval:            v.GetDuration("REBALANCE_AUTO_INTERVAL"),
			AutoEnabled:             v.GetBool("REBALANCE_AUTO_ENABLED"),
		},
	}
}
