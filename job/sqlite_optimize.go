package job

import (
	"database/sql"

	"fieldscan/scanner-relay/log"
)

// sqliteOptimize compacts the whole database file. VACUUM has no
// per-table form on sqlite, so the job runs it once and refreshes the
// query planner statistics afterwards.
type sqliteOptimize struct {
	Db *sql.DB
	SidecarQuitter
}

func (o *sqliteOptimize) Execute() error {
	_, err := o.Db.Exec("VACUUM;")
	if err == nil {
		_, err = o.Db.Exec("PRAGMA optimize;")
	}

	if err == nil {
		log.Logger.Info("compacted the sqlite relay database successfully")
	} else {
		log.Logger.WithError(err).Error("an error occurred compacting the sqlite relay database")
	}

	if o.QuitSidecar {
		if qerr := o.Quit(); qerr != nil {
			return qerr
		}
	}

	return err
}
