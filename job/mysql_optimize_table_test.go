package job

import (
	"errors"
	"testing"

	"fieldscan/scanner-relay/job/test"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMysqlOptimizeTables_Execute(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("OPTIMIZE TABLE outbox;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("OPTIMIZE TABLE identities;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("OPTIMIZE TABLE dead_letters;").WillReturnResult(sqlmock.NewResult(0, 0))

	j := &mysqlOptimizeTables{
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

func TestMysqlOptimizeTables_ExecuteStopsOnError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("OPTIMIZE TABLE outbox;").WillReturnError(errors.New("oops"))

	j := &mysqlOptimizeTables{
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

func TestMysqlOptimizeTables_ExecuteWithSidecarProxyQuit(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("OPTIMIZE TABLE outbox;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("OPTIMIZE TABLE identities;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("OPTIMIZE TABLE dead_letters;").WillReturnResult(sqlmock.NewResult(0, 0))
	cl := test.NewMockHttpClient()
	j := &mysqlOptimizeTables{
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

func TestMysqlOptimizeTables_ExecuteWithSidecarProxyQuitClientError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("OPTIMIZE TABLE outbox;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("OPTIMIZE TABLE identities;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("OPTIMIZE TABLE dead_letters;").WillReturnResult(sqlmock.NewResult(0, 0))
	cl := test.NewMockHttpClient()
	cl.ReturnErrors()
	j := &mysqlOptimizeTables{
		Db:             db,
		Tables:         relayTables,
		SidecarQuitter: SidecarQuitter{Client: cl},
	}
	j.EnableSideCarProxyQuit("http://localhost:8000")
	err := j.Execute()

	if err == nil {
		t.Error("expected an error but got nil")
	}

	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("some SQL expectations were not met: %s", err)
	}
}
