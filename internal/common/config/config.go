// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	HTTP       HTTPConfig              `mapstructure:"http"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Storage    StorageConfig           `mapstructure:"storage"`
	Billing    BillingConfig           `mapstructure:"billing"`
	LLM        LLMConfig               `mapstructure:"llm"`
	Generation GenerationConfig        `mapstructure:"generation"`
	Auth       AuthConfig              `mapstructure:"auth"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the request gateway and the ops endpoints.
type HTTPConfig struct {
	Address      string   `mapstructure:"address"`
	OpsAddress   string   `mapstructure:"ops_address"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int      `mapstructure:"write_timeout"` // milliseconds
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	CatalogIndex string   `mapstructure:"catalog_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig locates the tenant schema objects.
type StorageConfig struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"` // optional, for S3-compatible stores
}

// BillingConfig holds token metering settings.
type BillingConfig struct {
	PaymentEnforced   bool   `mapstructure:"payment_enforced"`
	MeterTopicARN     string `mapstructure:"meter_topic_arn"`
	MeterEventName    string `mapstructure:"meter_event_name"`
	OperationCost     int    `mapstructure:"operation_cost"`
	StorageMBPerToken int    `mapstructure:"storage_mb_per_token"`
	CacheTTL          int    `mapstructure:"cache_ttl"` // milliseconds
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	SchemaMaxTokens   int     `mapstructure:"schema_max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	GenerationTimeout int     `mapstructure:"generation_timeout"` // milliseconds
	AuxiliaryTimeout  int     `mapstructure:"auxiliary_timeout"`  // milliseconds
}

// GenerationConfig holds generation engine switches.
type GenerationConfig struct {
	ValidationEnabled bool `mapstructure:"validation_enabled"`
	MaxAttempts       int  `mapstructure:"max_attempts"`
}

// AuthConfig holds identity settings.
type AuthConfig struct {
	RootTenant string `mapstructure:"root_tenant"`
	Google     struct {
		UserInfoURL string `mapstructure:"userinfo_url"`
	} `mapstructure:"google"`
}

// WorkerConfig holds the settings applicable to every request kind, both as
// a Zeebe job type and as a gateway route.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
