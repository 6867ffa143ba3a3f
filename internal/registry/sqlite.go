package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

const (
	// timeFormat is the ISO 8601 format used for all timestamps in SQLite.
	timeFormat = "2006-01-02T15:04:05.000Z"
)

// SQLiteStore implements the Store interface using SQLite as the backing
// database. It provides durable, ACID-compliant registry storage suitable
// for single-node deployments and is the default engine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given DSN and
// initializes the database schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite database: %w", err)
	}
	return s, nil
}

// initDB applies PRAGMAs and creates the required tables and indexes.
// This is safe to call multiple times (idempotent via IF NOT EXISTS).
func (s *SQLiteStore) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS locations (
			id         TEXT PRIMARY KEY,
			code       TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			site       TEXT NOT NULL DEFAULT '',
			active     INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_locations_code ON locations(code);

		CREATE TABLE IF NOT EXISTS retired_codes (
			code       TEXT PRIMARY KEY,
			retired_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLocation(ctx context.Context, loc *LocationRecord) error {
	now := time.Now().UTC()
	created := loc.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, code, name, site, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		loc.ID, loc.Code, loc.Name, loc.Site,
		created.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmerr.ErrLocationExists.WithMessage("location %q already exists", loc.ID)
		}
		return fmt.Errorf("inserting location: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLocation(ctx context.Context, id string) (*LocationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, site, active, created_at, updated_at
		FROM locations WHERE id = ?`, id)
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying location: %w", err)
	}
	return loc, nil
}

func (s *SQLiteStore) ListLocations(ctx context.Context) ([]LocationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, site, active, created_at, updated_at
		FROM locations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var out []LocationRecord
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		out = append(out, *loc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE locations SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("deactivating location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmerr.ErrLocationNotFound.WithMessage("location %q not found", id)
	}
	return nil
}

func (s *SQLiteStore) ExistsByCode(ctx context.Context, codeVal string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM locations WHERE code = ?) +
			(SELECT COUNT(*) FROM retired_codes WHERE code = ?)`,
		codeVal, codeVal).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking code existence: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) FindByCode(ctx context.Context, codeVal string) (*LocationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, site, active, created_at, updated_at
		FROM locations WHERE code = ? AND active = 1`, codeVal)
	loc, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, fmerr.ErrCodeNotFound.WithMessage("code %q not bound", codeVal)
	}
	if err != nil {
		return nil, fmt.Errorf("querying code: %w", err)
	}
	return loc, nil
}

// BindCode retires the location's previous code and binds the new one in a
// single transaction, so a crash can never leave the old code mintable.
func (s *SQLiteStore) BindCode(ctx context.Context, locationID, codeVal string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning bind transaction: %w", err)
	}
	defer tx.Rollback()

	var old string
	err = tx.QueryRowContext(ctx,
		`SELECT code FROM locations WHERE id = ?`, locationID).Scan(&old)
	if err == sql.ErrNoRows {
		return fmerr.ErrLocationNotFound.WithMessage("location %q not found", locationID)
	}
	if err != nil {
		return fmt.Errorf("reading current code: %w", err)
	}

	now := time.Now().UTC().Format(timeFormat)
	if old != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO retired_codes (code, retired_at) VALUES (?, ?)`,
			old, now); err != nil {
			return fmt.Errorf("retiring old code: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE locations SET code = ?, updated_at = ? WHERE id = ?`,
		codeVal, now, locationID); err != nil {
		return fmt.Errorf("binding new code: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListRetiredCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM retired_codes ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("listing retired codes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning retired code: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RetireCode(ctx context.Context, codeVal string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO retired_codes (code, retired_at) VALUES (?, ?)`,
		codeVal, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("retiring code: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*LocationRecord, error) {
	var loc LocationRecord
	var active int
	var created, updated string
	if err := row.Scan(&loc.ID, &loc.Code, &loc.Name, &loc.Site, &active, &created, &updated); err != nil {
		return nil, err
	}
	loc.Active = active != 0
	if t, err := time.Parse(timeFormat, created); err == nil {
		loc.CreatedAt = t
	}
	if t, err := time.Parse(timeFormat, updated); err == nil {
		loc.UpdatedAt = t
	}
	return &loc, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure. The modernc driver surfaces these as plain errors, so the check
// is by message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}
