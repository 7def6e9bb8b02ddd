package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding accounts and transactions.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "bankassist.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Accounts ---

func (s *Store) InsertAccount(a Account) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO accounts (customer_id, name, account_number, ifsc_code, city, account_type, status, contact, password, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CustomerID, a.Name, a.AccountNumber, a.IFSCCode, a.City,
		a.AccountType, a.Status, a.Contact, a.Password, createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// FindAccountByNumber returns the account with the given account number,
// or ErrNotFound.
func (s *Store) FindAccountByNumber(number string) (Account, error) {
	var a Account
	var createdAt string
	err := s.db.QueryRow(`
		SELECT customer_id, name, account_number, ifsc_code, city, account_type, status, contact, password, created_at
		FROM accounts WHERE account_number = ?`, number,
	).Scan(&a.CustomerID, &a.Name, &a.AccountNumber, &a.IFSCCode, &a.City,
		&a.AccountType, &a.Status, &a.Contact, &a.Password, &createdAt)
	if err == sql.ErrNoRows {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Account{}, fmt.Errorf("parsing created_at: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}

// --- Transactions ---

func (s *Store) InsertTransaction(t Transaction) error {
	_, err := s.db.Exec(`
		INSERT INTO transactions (transaction_id, customer_id, account_number, occurred_at, amount, type, method, description, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.CustomerID, t.AccountNumber,
		t.OccurredAt.UTC().Format(time.RFC3339), t.Amount,
		t.Type, t.Method, t.Description, t.BalanceAfter,
	)
	return err
}

// ListTransactions returns all transactions for an account ordered by
// occurred_at ascending, so the last element is the most recent.
func (s *Store) ListTransactions(accountNumber string) ([]Transaction, error) {
	rows, err := s.db.Query(`
		SELECT transaction_id, customer_id, account_number, occurred_at, amount, type, method, description, balance_after
		FROM transactions WHERE account_number = ? ORDER BY occurred_at ASC`, accountNumber,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Transaction
	for rows.Next() {
		var t Transaction
		var occurredAt string
		if err := rows.Scan(&t.TransactionID, &t.CustomerID, &t.AccountNumber, &occurredAt,
			&t.Amount, &t.Type, &t.Method, &t.Description, &t.BalanceAfter); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		t.OccurredAt = ts
		results = append(results, t)
	}
	return results, rows.Err()
}

// CountTransactions returns the number of transactions stored for an account.
func (s *Store) CountTransactions(accountNumber string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE account_number = ?`, accountNumber).Scan(&n)
	return n, err
}
