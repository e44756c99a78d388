package job

import (
	"errors"
	"testing"

	"fieldscan/scanner-relay/job/test"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSqliteOptimize_Execute(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("VACUUM;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("PRAGMA optimize;").WillReturnResult(sqlmock.NewResult(0, 0))

	j := &sqliteOptimize{
		Db:             db,
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

func TestSqliteOptimize_ExecuteWithError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("VACUUM;").WillReturnError(errors.New("oops"))

	j := &sqliteOptimize{
		Db:             db,
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

func TestSqliteOptimize_ExecuteWithSidecarProxyQuit(t *testing.T) {
	db, mock, _ := sqlmock.New()
	mock.ExpectExec("VACUUM;").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("PRAGMA optimize;").WillReturnResult(sqlmock.NewResult(0, 0))
	cl := test.NewMockHttpClient()
	j := &sqliteOptimize{
		Db:             db,
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
