package internal

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full relay configuration, loaded once at startup and
// injected into the handler. Nothing reads the environment after load.
type Config struct {
	// Server holds HTTP server settings.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
		WebhookPath    string `yaml:"webhook_path"`
	} `yaml:"server"`
	// Relay holds the dispatch-side settings: which automation repository
	// to target and how to authenticate against the GitHub API.
	Relay RelayConfig `yaml:"relay"`
	// Audit holds the optional dispatch audit trail settings.
	Audit AuditConfig `yaml:"audit"`
}

// RelayConfig identifies the automation repository and carries the
// repository-to-workflow mapping.
type RelayConfig struct {
	// Token authenticates both outbound GitHub API calls.
	Token string `yaml:"token"`
	// AutomationOwner and AutomationRepo identify the repository whose
	// workflows are dispatched.
	AutomationOwner string `yaml:"automation_owner"`
	AutomationRepo  string `yaml:"automation_repo"`
	// WorkflowMap is the raw "repo:workflow,repo:workflow" mapping string.
	// It stays unparsed here and is parsed on every request, so edits to
	// the expanded value take effect without a restart.
	WorkflowMap string `yaml:"workflow_map"`
	// Secret, when set, enables webhook signature verification.
	Secret string `yaml:"secret"`
	// APIBaseURL overrides the GitHub API endpoint (GitHub Enterprise).
	APIBaseURL string `yaml:"api_base_url"`
	// Diagnostics controls whether error responses carry stack traces.
	Diagnostics bool `yaml:"diagnostics"`
}

// AuditConfig configures the optional dispatch audit trail. The trail is
// disabled unless at least one driver is listed.
type AuditConfig struct {
	Drivers   []string        `yaml:"drivers"`
	Topic     string          `yaml:"topic"`
	GoChannel GoChannelConfig `yaml:"gochannel"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	SQL       SQLConfig       `yaml:"sql"`
	HTTP      HTTPConfig      `yaml:"http"`
	JobQueue  JobQueueConfig  `yaml:"jobqueue"`
}

// GoChannelConfig holds configuration for the in-process GoChannel driver.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka driver.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming driver.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP driver.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL driver.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP forwarding driver.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// JobQueueConfig holds configuration for the job-table driver, which
// inserts audit records as jobs into a river-style Postgres table.
type JobQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// LoadConfig loads the relay configuration from a YAML file. Environment
// variables referenced in the file are expanded, defaults are applied, and
// the relay section is validated.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := cfg.Relay.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate confirms the required relay settings are present. A missing
// value is an operator mistake, so it surfaces as a ConfigurationError.
func (r RelayConfig) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return &ConfigurationError{Message: "relay token is required"}
	}
	if strings.TrimSpace(r.AutomationOwner) == "" {
		return &ConfigurationError{Message: "automation repository owner is required"}
	}
	if strings.TrimSpace(r.AutomationRepo) == "" {
		return &ConfigurationError{Message: "automation repository name is required"}
	}
	if strings.TrimSpace(r.WorkflowMap) == "" {
		return &ConfigurationError{Message: "workflow map is required"}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhooks/github"
	}
	if cfg.Audit.Topic == "" {
		cfg.Audit.Topic = "hookrelay.dispatch"
	}
	if cfg.Audit.GoChannel.OutputChannelBuffer == 0 {
		cfg.Audit.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Audit.HTTP.Mode == "" {
		cfg.Audit.HTTP.Mode = "topic_url"
	}
	if cfg.Audit.JobQueue.Table == "" {
		cfg.Audit.JobQueue.Table = "river_job"
	}
	if cfg.Audit.JobQueue.Queue == "" {
		cfg.Audit.JobQueue.Queue = "default"
	}
	if cfg.Audit.JobQueue.Kind == "" {
		cfg.Audit.JobQueue.Kind = "hookrelay.dispatch"
	}
	if cfg.Audit.JobQueue.MaxAttempts == 0 {
		cfg.Audit.JobQueue.MaxAttempts = 25
	}
}
