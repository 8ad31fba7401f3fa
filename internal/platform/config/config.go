// Package config loads service configuration from defaults, an optional
// config file, a .env file and RWA_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     Server
	Auth       Auth
	Log        Log
	Database   Database
	Redis      RedisConfig
	Kafka      Kafka
	Verifier   Verifier
	Reputation Reputation
	Approval   Approval
	Evolution  Evolution
	Webhook    Webhook
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	// AdminToken guards operator endpoints; empty disables them.
	AdminToken string
}

type Log struct {
	Level  string
	Format string
}

// Database selects the Postgres stores when URL is set; otherwise the
// service runs on in-memory stores.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers       []string
	ClientID      string
	AuditTopic    string
	ConsumerGroup string
	RelayInterval time.Duration
}

// Enabled reports whether the outbox relay and audit consumer should run.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

type Verifier struct {
	SeedFile string
}

// Reputation holds the per-result scoring bonuses.
type Reputation struct {
	Base             float64
	Diligence        float64
	Timeliness       float64
	MinSummaryLength int
	TimelinessWindow time.Duration
}

type Approval struct {
	VotingWindow  time.Duration
	SweepInterval time.Duration
	AuthorityFile string
	// Admins and Validators seed the role directory when no file is given.
	Admins     []string
	Validators []string
}

type Evolution struct {
	DefaultMode       string
	MaxValuationDelta float64
}

type Webhook struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	MaxRetries int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.readheadertimeout", 5*time.Second)
	v.SetDefault("server.requesttimeout", 30*time.Second)
	v.SetDefault("server.shutdowntimeout", 10*time.Second)

	v.SetDefault("auth.jwtsigningkey", "dev-secret-key-change-in-production")
	v.SetDefault("auth.issuer", "rwaledger")
	v.SetDefault("auth.audience", "rwaledger-api")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.maxopenconns", 20)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 30*time.Minute)

	v.SetDefault("redis.poolsize", 10)
	v.SetDefault("redis.minidleconns", 2)
	v.SetDefault("redis.dialtimeout", 5*time.Second)
	v.SetDefault("redis.readtimeout", 3*time.Second)
	v.SetDefault("redis.writetimeout", 3*time.Second)

	v.SetDefault("kafka.clientid", "rwaledger")
	v.SetDefault("kafka.audittopic", "rwaledger.audit")
	v.SetDefault("kafka.consumergroup", "rwaledger-audit-materializer")
	v.SetDefault("kafka.relayinterval", time.Second)

	v.SetDefault("reputation.base", 1.0)
	v.SetDefault("reputation.diligence", 0.5)
	v.SetDefault("reputation.timeliness", 0.5)
	v.SetDefault("reputation.minsummarylength", 100)
	v.SetDefault("reputation.timelinesswindow", 24*time.Hour)

	v.SetDefault("approval.votingwindow", 7*24*time.Hour)
	v.SetDefault("approval.sweepinterval", time.Minute)

	v.SetDefault("evolution.defaultmode", "OPTIONAL")
	v.SetDefault("evolution.maxvaluationdelta", 0.5)

	v.SetDefault("webhook.workers", 5)
	v.SetDefault("webhook.queuesize", 10000)
	v.SetDefault("webhook.timeout", 30*time.Second)
	v.SetDefault("webhook.maxretries", 3)
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RWA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Approval.Admins = splitList(cfg.Approval.Admins)
	cfg.Approval.Validators = splitList(cfg.Approval.Validators)
	return cfg, cfg.Validate()
}

// AutomaticEnv only resolves keys viper already knows; keys without a
// default must be bound explicitly for Unmarshal to see them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"auth.admintoken",
		"database.url",
		"redis.url",
		"kafka.brokers",
		"verifier.seedfile",
		"approval.authorityfile",
		"approval.admins",
		"approval.validators",
	} {
		_ = v.BindEnv(key)
	}
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	switch strings.ToUpper(c.Evolution.DefaultMode) {
	case "DISABLED", "OPTIONAL", "MANDATORY":
	default:
		return fmt.Errorf("evolution.defaultmode: unknown mode %q", c.Evolution.DefaultMode)
	}
	if c.Evolution.MaxValuationDelta <= 0 {
		return fmt.Errorf("evolution.maxvaluationdelta must be positive")
	}
	if c.Reputation.Base < 0 || c.Reputation.Diligence < 0 || c.Reputation.Timeliness < 0 {
		return fmt.Errorf("reputation bonuses must not be negative")
	}
	if c.Approval.VotingWindow <= 0 {
		return fmt.Errorf("approval.votingwindow must be positive")
	}
	if c.Approval.SweepInterval <= 0 {
		return fmt.Errorf("approval.sweepinterval must be positive")
	}
	if c.Kafka.RelayInterval <= 0 {
		return fmt.Errorf("kafka.relayinterval must be positive")
	}
	if c.Webhook.Workers <= 0 || c.Webhook.QueueSize <= 0 {
		return fmt.Errorf("webhook workers and queue size must be positive")
	}
	return nil
}
