//go:build benchmarks
// +build benchmarks

package benchmarks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	benchhub "fieldscan/scanner-relay/benchmarks/hub"
	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/delivery"
	"fieldscan/scanner-relay/hub"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/outbox"
	"fieldscan/scanner-relay/outbox/data"
	"fieldscan/scanner-relay/scan"

	"github.com/Shopify/sarama"
)

const benchIdentityId = "4006381333931"

var (
	cfg          *config.Config
	db           *sql.DB
	store        *outbox.Store
	resolver     *identity.Resolver
	hubSink      delivery.Sink
	syncProducer *benchhub.SyncProducer
)

func init() {
	cfg = createConfig()

	db, _ = data.NewDB(cfg)
	store = outbox.NewStore(db, cfg)

	syncProducer = benchhub.NewSyncProducer()
	client := hub.NewClientWithProducerFactory(cfg, func(cred hub.Credential) (sarama.SyncProducer, error) {
		return syncProducer, nil
	})

	resolver = identity.NewResolver(store, hub.NewProvisioningClient(cfg), cfg)
	hubSink = delivery.NewHubSink(client)

	seedIdentity()
}

func seedIdentity() {
	now := time.Now().UTC()
	ident := identity.Identity{
		Id:            benchIdentityId,
		Credential:    fmt.Sprintf("hosts=localhost:9092;identityId=%s;sharedAccessKey=bench-key", benchIdentityId),
		ProvisionedAt: now,
		LastSeenAt:    now,
		Status:        identity.StatusActive,
	}

	if err := store.UpsertIdentity(context.Background(), ident); err != nil {
		panic(fmt.Sprintf("an error occurred seeding the benchmark identity: %s", err))
	}
}

func purgeOutboxTable() {
	_, err := db.Exec("DELETE FROM outbox;")
	if err != nil {
		panic(fmt.Sprintf("an error occurred cleaning the outbox table for benchmarks: %s", err))
	}
}

func insertOutboxEntries(evJson []byte, count int) {
	tx, err := db.Begin()
	if err != nil {
		panic(fmt.Sprintf("error creating a DB transaction: %s", err))
	}

	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		_, err = tx.Exec("INSERT INTO outbox (event_json, created_at) VALUES (?, ?);", evJson, now)
		if err != nil {
			panic(fmt.Sprintf("failed to insert outbox entry in DB: %s", err))
		}
	}

	err = tx.Commit()
	if err != nil {
		panic(fmt.Sprintf("error committing DB transaction: %s", err))
	}
}

func queuedEventJson() []byte {
	ev := scan.Event{
		Code:            benchIdentityId,
		OwnerIdentityId: benchIdentityId,
		ObservedAt:      time.Now().UTC(),
		QuantityDelta:   1,
		Kind:            scan.KindQuantityUpdate,
		SourceDeviceTag: "bench-unit",
	}

	evJson, err := ev.Encode()
	if err != nil {
		panic(fmt.Sprintf("failed to encode the benchmark event: %s", err))
	}

	return evJson
}

func createConfig() *config.Config {
	dbPath := filepath.Join(os.TempDir(), "scanner-relay-bench.db")
	_ = os.Remove(dbPath)

	return &config.Config{
		DBDriver:             config.SQLite,
		DBPath:               dbPath,
		HubHost:              []string{"localhost:9092"},
		HubTopic:             "scan-events-bench",
		HubSendAttempts:      1,
		HubProvisionUrl:      "http://localhost:1/provision",
		ApiBaseUrl:           "http://localhost:1",
		MinCodeLength:        6,
		ProvisionTimeoutSecs: 1,
		MaxRetries:           5,
		BatchSize:            batchSize,
		DeliveryTimeoutSecs:  5,
	}
}
