package services

import (
	"database/sql"
	"os"
	"testing"

	"github.com/douglassdm/pulsefinance/backend/src/logger"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// newTestDB opens an in-memory database with the tables the engines touch.
// Foreign keys are deliberately left off so fixtures stay small.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		bank_account_id INTEGER NOT NULL,
		category_id INTEGER,
		type TEXT NOT NULL,
		value REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		transaction_date TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE debts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		original_amount REAL NOT NULL,
		current_amount REAL NOT NULL,
		monthly_interest_rate REAL,
		due_date TEXT,
		last_payment_date DATETIME,
		creditor TEXT,
		description TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE recurring_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		bank_account_id INTEGER NOT NULL,
		category_id INTEGER,
		type TEXT NOT NULL,
		value REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		next_occurrence_date TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting rows in %s: %v", table, err)
	}
	return n
}
