package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"fieldscan/scanner-relay/log"

	"github.com/alexflint/go-arg"
)

const (
	SQLite   DbDriver = "sqlite"
	MySQL    DbDriver = "mysql"
	Postgres DbDriver = "postgres"
)

type DbDriver string

var supportedDbTypes = map[DbDriver]bool{
	SQLite:   true,
	Postgres: true,
	MySQL:    true,
}

type Config struct {
	SkipMigrations         bool     `arg:"--skip-migrations,env:SKIP_MIGRATIONS"`
	DBDriver               DbDriver `arg:"--db-driver,env:DB_DRIVER"`
	DBPath                 string   `arg:"--db-path,env:DB_PATH"`
	DBHost                 string   `arg:"--db-host,env:DB_HOST"`
	DBPort                 uint32   `arg:"--db-port,env:DB_PORT"`
	DBUser                 string   `arg:"--db-user,env:DB_USER"`
	DBPass                 string   `arg:"--db-pass,env:DB_PASS"`
	DBSchema               string   `arg:"--db-schema,env:DB_SCHEMA"`
	HubHost                []string `arg:"--hub-host,env:HUB_HOST,required"`
	HubTopic               string   `arg:"--hub-topic,env:HUB_TOPIC"`
	HubProvisionUrl        string   `arg:"--hub-provision-url,env:HUB_PROVISION_URL,required"`
	HubSendAttempts        int      `arg:"--hub-send-attempts,env:HUB_SEND_ATTEMPTS"`
	TLSEnable              bool     `arg:"--hub-tls,env:TLS_ENABLE"`
	TLSSkipVerifyPeer      bool     `arg:"--hub-tls-verify-peer,env:TLS_SKIP_VERIFY_PEER"`
	ApiBaseUrl             string   `arg:"--api-base-url,env:API_BASE_URL,required"`
	ReservedTestCodes      []string `arg:"--reserved-test-codes,env:RESERVED_TEST_CODES"`
	MinCodeLength          int      `arg:"--min-code-length,env:MIN_CODE_LENGTH"`
	ProvisionTimeoutSecs   int      `arg:"--provision-timeout,env:PROVISION_TIMEOUT_SECONDS"`
	MaxRetries             int      `arg:"--max-retries,env:MAX_RETRIES"`
	DrainFrequencySecs     int      `arg:"--drain-frequency,env:DRAIN_FREQUENCY_SECONDS"`
	BatchSize              int      `arg:"--batch-size,env:BATCH_SIZE"`
	BackoffBaseSecs        int      `arg:"--backoff-base,env:BACKOFF_BASE_SECONDS"`
	BackoffCapSecs         int      `arg:"--backoff-cap,env:BACKOFF_CAP_SECONDS"`
	DeliveryTimeoutSecs    int      `arg:"--delivery-timeout,env:DELIVERY_TIMEOUT_SECONDS"`
	ConnectivityProbeAddr  string   `arg:"--connectivity-probe-addr,env:CONNECTIVITY_PROBE_ADDR"`
	ConnectivityPollSecs   int      `arg:"--connectivity-poll,env:CONNECTIVITY_POLL_SECONDS"`
	DedupCooldownMs        int      `arg:"--dedup-cooldown-ms,env:DEDUP_COOLDOWN_MS"`
	SourceDeviceTag        string   `arg:"--source-device-tag,env:SOURCE_DEVICE_TAG"`
	ListenAddr             string   `arg:"--listen-addr,env:LISTEN_ADDR"`
	RunCleanup             bool     `arg:"--cleanup,env:RUN_CLEANUP"`
	RunOptimize            bool     `arg:"--optimize,env:RUN_OPTIMIZE"`
	SidecarProxyUrl        string   `arg:"--sidecar-proxy-url,env:SIDECAR_PROXY_URL"`
	DeadLetterRetentionHrs int      `arg:"--dead-letter-retention,env:DEAD_LETTER_RETENTION_HOURS"`
}

func NewConfig() (*Config, error) {
	c := &Config{
		DBDriver:               SQLite,
		DBPath:                 "barcode_scans.db",
		HubTopic:               "scan-events",
		HubSendAttempts:        2,
		ReservedTestCodes:      []string{"817994ccfe14"},
		MinCodeLength:          6,
		ProvisionTimeoutSecs:   10,
		MaxRetries:             5,
		DrainFrequencySecs:     10,
		BatchSize:              20,
		BackoffBaseSecs:        2,
		BackoffCapSecs:         300,
		DeliveryTimeoutSecs:    30,
		ConnectivityProbeAddr:  "8.8.8.8:53",
		ConnectivityPollSecs:   15,
		SourceDeviceTag:        defaultSourceDeviceTag(),
		ListenAddr:             ":8980",
		DeadLetterRetentionHrs: 720,
	}
	arg.MustParse(c)

	if !supportedDbTypes[c.DBDriver] {
		return nil, fmt.Errorf("the DB_DRIVER provided (%s) is not supported", c.DBDriver)
	}

	if c.DBDriver == SQLite {
		if c.DBPath == "" {
			return nil, fmt.Errorf("a DB_PATH is required when using the %s driver", SQLite)
		}
	} else if c.DBHost == "" || c.DBUser == "" || c.DBSchema == "" {
		return nil, fmt.Errorf("DB_HOST, DB_USER and DB_SCHEMA are required when using the %s driver", c.DBDriver)
	}

	if c.BatchSize < 1 {
		return nil, fmt.Errorf("the BATCH_SIZE provided (%d) must be at least 1", c.BatchSize)
	}

	if c.MaxRetries < 0 {
		return nil, fmt.Errorf("the MAX_RETRIES provided (%d) cannot be negative", c.MaxRetries)
	}

	return c, nil
}

func (c *Config) GetDrainInterval() time.Duration {
	return time.Duration(c.DrainFrequencySecs) * time.Second
}

func (c *Config) GetBackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSecs) * time.Second
}

func (c *Config) GetBackoffCap() time.Duration {
	return time.Duration(c.BackoffCapSecs) * time.Second
}

func (c *Config) GetDeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSecs) * time.Second
}

func (c *Config) GetProvisionTimeout() time.Duration {
	return time.Duration(c.ProvisionTimeoutSecs) * time.Second
}

func (c *Config) GetConnectivityPollInterval() time.Duration {
	return time.Duration(c.ConnectivityPollSecs) * time.Second
}

func (c *Config) GetDedupCooldown() time.Duration {
	return time.Duration(c.DedupCooldownMs) * time.Millisecond
}

func (c *Config) GetDeadLetterRetention() time.Duration {
	return time.Duration(c.DeadLetterRetentionHrs) * time.Hour
}

func (c *Config) GetDSN() string {
	switch c.DBDriver {
	case SQLite:
		return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", c.DBPath)
	case MySQL:
		tls := "false"
		if c.TLSEnable {
			if c.TLSSkipVerifyPeer {
				tls = "skip-verify"
			} else {
				tls = "true"
			}
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s&multiStatements=true", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBSchema, tls)
	case Postgres:
		sslMode := "disable"
		if c.TLSEnable {
			if c.TLSSkipVerifyPeer {
				sslMode = "require"
			} else {
				sslMode = "verify-full"
			}
		}
		return fmt.Sprintf("%s://%s@%s:%d/%s?sslmode=%s", c.DBDriver, url.UserPassword(c.DBUser, c.DBPass), c.DBHost, c.DBPort, c.DBSchema, sslMode)
	default:
		log.Logger.Fatalf("the DB driver configured (%s) is not supported", c.DBDriver)
		return ""
	}
}

// GetDependencySystemAddresses returns the addresses health checks should
// probe to decide whether the unit can currently reach the hub.
func (c *Config) GetDependencySystemAddresses() []string {
	return c.HubHost
}

func (d DbDriver) SQLite() bool {
	return d == SQLite
}

func (d DbDriver) MySQL() bool {
	return d == MySQL
}

func (d DbDriver) Postgres() bool {
	return d == Postgres
}

func (d DbDriver) String() string {
	return string(d)
}

// DriverName maps the configured driver to the name it is registered
// under in database/sql.
func (d DbDriver) DriverName() string {
	if d == Postgres {
		return "pgx"
	}

	return string(d)
}

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"SkipMigrations":         c.SkipMigrations,
		"DBDriver":               c.DBDriver,
		"DBPath":                 c.DBPath,
		"DBHost":                 c.DBHost,
		"DBPort":                 c.DBPort,
		"DBUser":                 c.DBUser,
		"DBPass":                 "xxxxx",
		"DBSchema":               c.DBSchema,
		"HubHost":                c.HubHost,
		"HubTopic":               c.HubTopic,
		"HubProvisionUrl":        c.HubProvisionUrl,
		"HubSendAttempts":        c.HubSendAttempts,
		"TLSEnable":              c.TLSEnable,
		"TLSSkipVerifyPeer":      c.TLSSkipVerifyPeer,
		"ApiBaseUrl":             c.ApiBaseUrl,
		"ReservedTestCodes":      c.ReservedTestCodes,
		"MinCodeLength":          c.MinCodeLength,
		"ProvisionTimeoutSecs":   c.ProvisionTimeoutSecs,
		"MaxRetries":             c.MaxRetries,
		"DrainFrequencySecs":     c.DrainFrequencySecs,
		"BatchSize":              c.BatchSize,
		"BackoffBaseSecs":        c.BackoffBaseSecs,
		"BackoffCapSecs":         c.BackoffCapSecs,
		"DeliveryTimeoutSecs":    c.DeliveryTimeoutSecs,
		"ConnectivityProbeAddr":  c.ConnectivityProbeAddr,
		"ConnectivityPollSecs":   c.ConnectivityPollSecs,
		"DedupCooldownMs":        c.DedupCooldownMs,
		"SourceDeviceTag":        c.SourceDeviceTag,
		"ListenAddr":             c.ListenAddr,
		"RunCleanup":             c.RunCleanup,
		"RunOptimize":            c.RunOptimize,
		"SidecarProxyUrl":        c.SidecarProxyUrl,
		"DeadLetterRetentionHrs": c.DeadLetterRetentionHrs,
	})
}

func defaultSourceDeviceTag() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "scanner"
	}

	return host
}
