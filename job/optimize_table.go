package job

import (
	"database/sql"
	"net/http"

	"fieldscan/scanner-relay/config"
	"fieldscan/scanner-relay/log"
)

// relayTables are the tables maintained by the optimize job on the
// server databases.
var relayTables = []string{"outbox", "identities", "dead_letters"}

type Optimizer interface {
	Execute() error
	EnableSideCarProxyQuit(proxyUrl string)
}

// RunOptimize compacts the relay storage, typically scheduled after the
// cleanup job has purged expired dead letters.
func RunOptimize(db *sql.DB, cfg *config.Config) int {
	j := newOptimizeWithDefaultClient(db, cfg.DBDriver)
	if j == nil {
		log.Logger.WithField("driver", cfg.DBDriver).Fatalf("unable to determine the database driver")
		return 1
	}

	if cfg.SidecarProxyUrl != "" {
		j.EnableSideCarProxyQuit(cfg.SidecarProxyUrl)
	}

	if err := j.Execute(); err != nil {
		return 1
	}

	return 0
}

func newOptimizeWithDefaultClient(db *sql.DB, dr config.DbDriver) Optimizer {
	return newOptimize(db, dr, http.DefaultClient)
}

func newOptimize(db *sql.DB, dr config.DbDriver, cl httpPoster) Optimizer {
	sc := SidecarQuitter{Client: cl}
	switch true {
	case dr.MySQL():
		return &mysqlOptimizeTables{
			Db:             db,
			Tables:         relayTables,
			SidecarQuitter: sc,
		}
	case dr.Postgres():
		return &postgresOptimizeTables{
			Db:             db,
			Tables:         relayTables,
			SidecarQuitter: sc,
		}
	case dr.SQLite():
		return &sqliteOptimize{
			Db:             db,
			SidecarQuitter: sc,
		}
	}

	return nil
}
