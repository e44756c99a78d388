package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"fieldscan/scanner-relay/backend"
	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/connectivity"
	"fieldscan/scanner-relay/delivery"
	h "fieldscan/scanner-relay/http"
	"fieldscan/scanner-relay/hub"
	"fieldscan/scanner-relay/identity"
	"fieldscan/scanner-relay/job"
	"fieldscan/scanner-relay/log"
	"fieldscan/scanner-relay/outbox"
	"fieldscan/scanner-relay/outbox/data"
	"fieldscan/scanner-relay/prometheus"
	"fieldscan/scanner-relay/scan"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	cfg, err := config.NewConfig()
	if err != nil {
		log.Logger.Fatalf("unable to create configuration: %s", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	db, dbClose := data.NewDB(cfg)
	defer dbClose()

	store := outbox.NewStore(db, cfg)

	var exitCode int
	switch {
	case cfg.RunCleanup:
		exitCode = job.RunCleanup(store, cfg)
	case cfg.RunOptimize:
		exitCode = job.RunOptimize(db, cfg)
	default:
		runMainApp(ctx, cfg, db, store)
	}

	if exitCode > 0 {
		dbClose() // we call this manually because os.Exit() does not respect defer
		os.Exit(exitCode)
	}
}

func runMainApp(ctx context.Context, cfg *config.Config, db *sql.DB, store outbox.Store) {
	hubClient := hub.NewClient(cfg)
	defer func() {
		if err := hubClient.Close(); err != nil {
			log.Logger.WithError(err).Error("an error occurred closing the hub connections")
		}
	}()

	resolver := identity.NewResolver(store, hub.NewProvisioningClient(cfg), cfg)
	monitor := connectivity.NewMonitor(cfg)
	worker := delivery.NewWorker(cfg, store, resolver,
		delivery.NewHubSink(hubClient),
		delivery.NewBackendSink(backend.NewClient(cfg)),
	)
	ingest := scan.NewService(cfg, resolver, store, monitor)

	go monitor.Run(ctx)
	go worker.Run(ctx, monitor.DrainSignals())
	go func() {
		for range worker.Abandoned() {
			prometheus.CountAbandonedEntry()
		}
	}()

	go prometheus.ObservePendingSize(store, ctx)
	go prometheus.ObserveDeadLetterSize(store, ctx)
	go prometheus.ObserveIdentityCount(store, ctx)

	prometheus.StartHttpServer(cfg, db, h.NewIngestHandler(ingest), h.NewIdentitiesHandler(resolver))
}
