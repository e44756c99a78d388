package job

import (
	"database/sql"
	"fmt"

	"fieldscan/scanner-relay/log"
)

type mysqlOptimizeTables struct {
	Db     *sql.DB
	Tables []string
	SidecarQuitter
}

func (o *mysqlOptimizeTables) Execute() error {
	var err error
	for _, table := range o.Tables {
		if _, err = o.Db.Exec(fmt.Sprintf("OPTIMIZE TABLE %s;", table)); err != nil {
			log.Logger.WithError(err).Errorf("an error occurred optimizing the MySQL table %s", table)
			break
		}
	}

	if err == nil {
		log.Logger.Info("optimized the MySQL relay tables successfully")
	}

	if o.QuitSidecar {
		if qerr := o.Quit(); qerr != nil {
			return qerr
		}
	}

	return err
}
