package job

import (
	"database/sql"
	"fmt"

	"fieldscan/scanner-relay/log"
)

type postgresOptimizeTables struct {
	Db     *sql.DB
	Tables []string
	SidecarQuitter
}

func (o *postgresOptimizeTables) Execute() error {
	var err error
	for _, table := range o.Tables {
		if _, err = o.Db.Exec(fmt.Sprintf("VACUUM %s;", table)); err != nil {
			log.Logger.WithError(err).Errorf("an error occurred vacuuming the Postgres table %s", table)
			break
		}
	}

	if err == nil {
		log.Logger.Info("vacuumed the Postgres relay tables successfully")
	}

	if o.QuitSidecar {
		if qerr := o.Quit(); qerr != nil {
			return qerr
		}
	}

	return err
}
