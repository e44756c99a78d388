//go:build integration
// +build integration

package integration

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func purgeAllTables() {
	for _, table := range []string{"outbox", "dead_letters", "identities"} {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s;", table)); err != nil {
			panic(fmt.Sprintf("an error occurred cleaning the %s table for tests: %s", table, err))
		}
	}
}

func countOutboxEntries() int {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM outbox;").Scan(&count); err != nil {
		panic(fmt.Sprintf("an error occurred counting the outbox entries: %s", err))
	}

	return count
}

func getOutboxRetryCount(id int64) int {
	var count int
	err := db.QueryRow("SELECT retry_count FROM outbox WHERE id = ?;", id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return -1
	}
	if err != nil {
		panic(fmt.Sprintf("an error occurred reading the retry count of entry %d: %s", id, err))
	}

	return count
}

type deadLetterRow struct {
	Id         int64
	EventJson  string
	RetryCount int
	Reason     string
}

func getDeadLetters() []deadLetterRow {
	rows, err := db.Query("SELECT id, event_json, retry_count, reason FROM dead_letters ORDER BY id ASC;")
	if err != nil {
		panic(fmt.Sprintf("an error occurred reading the dead letters: %s", err))
	}
	defer rows.Close()

	var out []deadLetterRow
	for rows.Next() {
		var dl deadLetterRow
		if err = rows.Scan(&dl.Id, &dl.EventJson, &dl.RetryCount, &dl.Reason); err != nil {
			panic(fmt.Sprintf("an error occurred scanning a dead letter: %s", err))
		}
		out = append(out, dl)
	}

	return out
}

func insertDeadLetter(eventJson string, abandonedAt time.Time) int64 {
	res, err := db.Exec(
		"INSERT INTO dead_letters (event_json, retry_count, reason, abandoned_at) VALUES (?, ?, ?, ?);",
		eventJson, 6, "integration seed", abandonedAt.UTC(),
	)
	if err != nil {
		panic(fmt.Sprintf("an error occurred seeding a dead letter: %s", err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		panic(fmt.Sprintf("an error occurred reading the seeded dead letter id: %s", err))
	}

	return id
}

func deadLetterExists(id int64) bool {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM dead_letters WHERE id = ?;", id).Scan(&count); err != nil {
		panic(fmt.Sprintf("an error occurred checking dead letter %d: %s", id, err))
	}

	return count > 0
}

func identityStatus(id string) (string, bool) {
	var status string
	err := db.QueryRow("SELECT status FROM identities WHERE identity_id = ?;", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		panic(fmt.Sprintf("an error occurred reading identity %s: %s", id, err))
	}

	return status, true
}
