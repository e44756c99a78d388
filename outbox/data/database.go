package data

import (
	"database/sql"
	"time"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "modernc.org/sqlite"
)

const (
	connectionAttempts    = 30
	maxOpenConnections    = 10
	maxIdleConnections    = 5
	maxConnectionLifetime = time.Minute * 1
)

func init() {
	setupLoggers()
}

func setupLoggers() {
	err := mysql.SetLogger(log.Logger)
	if err != nil {
		log.Logger.WithError(err).Fatalf("unable to set up JSON logger for MySQL driver")
	}
}

// NewDB opens the configured database, waits for it to become available
// and applies migrations unless they are disabled. The returned cleanup
// closes the connection.
func NewDB(cfg *config.Config) (*sql.DB, func()) {
	log.Logger.Debug("connecting to the database")

	db, err := sql.Open(cfg.DBDriver.DriverName(), cfg.GetDSN())
	if err != nil {
		log.Logger.Fatalf("unable to connect to the database: %s", err)
	}

	if cfg.DBDriver.SQLite() {
		// sqlite allows a single writer; extra connections only turn
		// WAL waits into SQLITE_BUSY errors.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(maxOpenConnections)
		db.SetMaxIdleConns(maxIdleConnections)
		db.SetConnMaxLifetime(maxConnectionLifetime)
	}

	waitForDatabase(db)
	MigrateDatabase(db, cfg)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Logger.WithError(err).Error("error closing database during shutdown process")
		}
	}

	return db, cleanup
}

func waitForDatabase(db *sql.DB) {
	tries := connectionAttempts
	for {
		err := db.Ping()
		if err == nil {
			return
		}

		time.Sleep(time.Second * 1)
		tries--
		log.Logger.Infof("database is not available (err: %s), retrying %d more time(s)", err, tries)

		if tries == 0 {
			log.Logger.Fatalf("database did not become available within %d connection attempts", connectionAttempts)
		}
	}
}
