package job

import (
	"errors"
	"testing"

	"fieldscan/scanner-relay/job/test"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresOptimizeTables_Execute(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("VACUUM outbox;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("VACUUM identities;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("VACUUM dead_letters;").WillReturnResult(sqlmock.NewResult(0, 0))

	j := &postgresOptimizeTables{
		Db:             db,
		Tables:         relayTables,
		SidecarQuitter: SidecarQuitter{},
	}
	err := j.Execute()

	if err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("some SQL expectations were not met: %s", err)
	}
}

func TestPostgresOptimizeTables_ExecuteStopsOnError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("VACUUM outbox;").WillReturnError(errors.New("oops"))

	j := &postgresOptimizeTables{
		Db:             db,
		Tables:         relayTables,
		SidecarQuitter: SidecarQuitter{},
	}
	err := j.Execute()

	if err == nil {
		t.Error("expected an error but got nil")
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("some SQL expectations were not met: %s", err)
	}
}

func TestPostgresOptimizeTables_ExecuteWithSidecarProxyQuit(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("VACUUM outbox;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("VACUUM identities;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("VACUUM dead_letters;").WillReturnResult(sqlmock.NewResult(0, 0))
	cl := test.NewMockHttpClient()
	j := &postgresOptimizeTables{
		Db:             db,
		Tables:         relayTables,
		SidecarQuitter: SidecarQuitter{Client: cl},
	}
	j.EnableSideCarProxyQuit("http://localhost:8000")
	err := j.Execute()

	if err != nil {
		t.Errorf("unexpected error: %s", err)
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("some SQL expectations were not met: %s", err)
	}

	if cl.SentReqs["http://localhost:8000/quitquitquit"] == 0 {
		t.Errorf("expected a call to sidecar proxy http://localhost:8000/quitquitquit, but there was none")
	}
}
