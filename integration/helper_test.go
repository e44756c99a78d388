//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"fieldscan/scanner-relay/backend"
	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/delivery"
	"fieldscan/scanner-relay/hub"
	"fieldscan/scanner-relay/identity"
	testhttp "fieldscan/scanner-relay/integration/http"
	testhub "fieldscan/scanner-relay/integration/hub"
	"fieldscan/scanner-relay/outbox"
	"fieldscan/scanner-relay/outbox/data"

	"github.com/Shopify/sarama"
)

var (
	cfg         *config.Config
	db          *sql.DB
	store       outbox.Store
	testBackend *testhttp.Backend
	server      *httptest.Server
)

func init() {
	testBackend = testhttp.NewBackend()
	server = httptest.NewServer(testBackend.Handler())
	setupConfig()

	db, _ = data.NewDB(cfg)
	store = outbox.NewStore(db, cfg)
	purgeAllTables()
}

func setupConfig() *config.Config {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("scanner-relay-test-%d.db", os.Getpid()))
	_ = os.Remove(path)

	cfg = &config.Config{
		DBDriver:               config.SQLite,
		DBPath:                 path,
		HubHost:                []string{"localhost:9092"},
		HubTopic:               "scan-events-test",
		HubSendAttempts:        1,
		HubProvisionUrl:        server.URL + "/provision",
		ApiBaseUrl:             server.URL,
		ReservedTestCodes:      []string{"817994ccfe14"},
		MinCodeLength:          6,
		ProvisionTimeoutSecs:   2,
		MaxRetries:             5,
		DrainFrequencySecs:     1,
		BatchSize:              250,
		DeliveryTimeoutSecs:    5,
		ConnectivityProbeAddr:  "localhost:1",
		ConnectivityPollSecs:   1,
		SourceDeviceTag:        "integration-unit",
		DeadLetterRetentionHrs: 720,
		SidecarProxyUrl:        server.URL,
	}

	return cfg
}

// cfgWithMaxRetries copies the shared configuration with a different
// retry budget, for scenarios that must (or must never) hit it.
func cfgWithMaxRetries(n int) *config.Config {
	c := *cfg
	c.MaxRetries = n

	return &c
}

// relayHarness is one running delivery pipeline with fake edges: a
// recording hub producer and the shared test backend.
type relayHarness struct {
	worker   *delivery.Worker
	producer *testhub.SyncProducer
	resolver *identity.Resolver
	drainNow func()
	stop     func()
}

func startRelay(c *config.Config, st outbox.Store) *relayHarness {
	signals := make(chan struct{}, 1)
	h := startRelayDrainedBy(c, st, signals)
	h.drainNow = func() {
		select {
		case signals <- struct{}{}:
		default:
		}
	}

	return h
}

func startRelayDrainedBy(c *config.Config, st outbox.Store, signals <-chan struct{}) *relayHarness {
	producer := testhub.NewSyncProducer()
	hubClient := hub.NewClientWithProducerFactory(c, func(cred hub.Credential) (sarama.SyncProducer, error) {
		return producer, nil
	})

	resolver := identity.NewResolver(st, hub.NewProvisioningClient(c), c)
	worker := delivery.NewWorker(c, st, resolver,
		delivery.NewHubSink(hubClient),
		delivery.NewBackendSink(backend.NewClient(c)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx, signals)
		close(done)
	}()

	return &relayHarness{
		worker:   worker,
		producer: producer,
		resolver: resolver,
		stop: func() {
			cancel()
			<-done
		},
	}
}

func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond * 25)
	}

	return false
}
