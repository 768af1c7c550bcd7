package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	media_url TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	send_time INTEGER NOT NULL,
	pickup_time INTEGER,
	end_time INTEGER,
	time_to_pickup REAL,
	time_taken REAL,
	process_time REAL,
	worker_id TEXT,
	host TEXT,
	started_count INTEGER NOT NULL DEFAULT 0,
	result_json TEXT,
	error_message TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
`

// SQLiteStore persists task records in a local SQLite database. A file
// lock next to the database keeps two daemon processes from sharing it.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	lock      *flock.Flock
	retention time.Duration
}

// OpenSQLite opens (creating if necessary) the configured database file.
func OpenSQLite(ctx context.Context, cfg *config.Config) (*SQLiteStore, error) {
	path, err := config.ExpandPath(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire store lock: %s is in use by another process", path)
	}

	store := &SQLiteStore{
		path: path,
		lock: lock,
	}
	if cfg.Store.RetentionDays > 0 {
		store.retention = time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
	}

	if err := store.connect(ctx); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := store.pruneExpired(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func openSQLiteUnlocked(ctx context.Context, cfg *config.Config) (*SQLiteStore, error) {
	path, err := config.ExpandPath(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	store := &SQLiteStore{path: path}
	if err := store.connect(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply schema: %w", err)
	}
	s.db = db
	return nil
}

// Create inserts a new sent record.
func (s *SQLiteStore) Create(ctx context.Context, record *TaskRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	resultJSON, err := encodeResult(record.Result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			task_id, status, media_url, webhook_url, send_time,
			started_count, result_json, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.TaskID,
		string(record.Status),
		record.MediaURL,
		record.WebhookURL,
		record.SendTime,
		record.StartedCount,
		resultJSON,
		record.ErrorMessage,
		record.CreatedAt.Format(time.RFC3339Nano),
		record.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", record.TaskID, err)
	}
	return nil
}

// Claim performs the sent to started transition as a single conditional
// update so concurrent claimers cannot both win.
func (s *SQLiteStore) Claim(ctx context.Context, taskID string, claim Claim) (ClaimOutcome, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = ?,
			pickup_time = ?,
			time_to_pickup = CAST(? - send_time AS REAL),
			worker_id = ?,
			host = ?,
			started_count = started_count + 1,
			updated_at = ?
		WHERE task_id = ? AND status = ?`,
		string(StatusStarted),
		claim.PickupTime,
		claim.PickupTime,
		claim.WorkerID,
		claim.Host,
		time.Now().UTC().Format(time.RFC3339Nano),
		taskID,
		string(StatusSent),
	)
	if err != nil {
		return ClaimNotFound, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return ClaimNotFound, fmt.Errorf("claim task %s: rows affected: %w", taskID, err)
	}
	if rows > 0 {
		return Claimed, nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE task_id = ?`, taskID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ClaimNotFound, nil
	}
	if err != nil {
		return ClaimNotFound, fmt.Errorf("claim task %s: read status: %w", taskID, err)
	}
	return ClaimAlreadyTaken, nil
}

// RecordTerminal writes the final status and derived timing fields.
func (s *SQLiteStore) RecordTerminal(ctx context.Context, taskID string, terminal Terminal) error {
	if !terminal.Status.Terminal() {
		return fmt.Errorf("record terminal for %s: %s is not terminal", taskID, terminal.Status)
	}
	resultJSON, err := encodeResult(terminal.Result)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = ?,
			end_time = ?,
			time_taken = CAST(? - send_time AS REAL),
			process_time = CASE WHEN pickup_time IS NULL THEN NULL
				ELSE CAST(? - pickup_time AS REAL) END,
			result_json = ?,
			error_message = ?,
			updated_at = ?
		WHERE task_id = ?`,
		string(terminal.Status),
		terminal.EndTime,
		terminal.EndTime,
		terminal.EndTime,
		resultJSON,
		terminal.ErrorMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
		taskID,
	)
	if err != nil {
		return fmt.Errorf("record terminal for %s: %w", taskID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record terminal for %s: rows affected: %w", taskID, err)
	}
	if rows == 0 {
		return fmt.Errorf("record terminal for %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// Get fetches a record by task identifier.
func (s *SQLiteStore) Get(ctx context.Context, taskID string) (*TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE task_id = ?`, taskID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return record, nil
}

// ListByStatus returns records in a status, newest first.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*TaskRecord, error) {
	query := selectColumns + ` WHERE status = ? ORDER BY send_time DESC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s tasks: %w", status, err)
	}
	defer rows.Close()

	var records []*TaskRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s tasks: %w", status, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s tasks: %w", status, err)
	}
	return records, nil
}

// Stats counts records per status.
func (s *SQLiteStore) Stats(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int64, 4)
	for _, status := range AllStatuses() {
		stats[status] = 0
	}
	for rows.Next() {
		var raw string
		var count int64
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("task stats: %w", err)
		}
		if status, err := ParseStatus(raw); err == nil {
			stats[status] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// Ping verifies the database handle is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("ping store: closed")
	}
	return s.db.PingContext(ctx)
}

// Reconnect discards the current handle and opens a fresh one.
func (s *SQLiteStore) Reconnect(ctx context.Context) error {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	return s.connect(ctx)
}

// Close releases the database handle and file lock.
func (s *SQLiteStore) Close() error {
	var dbErr error
	if s.db != nil {
		dbErr = s.db.Close()
		s.db = nil
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && dbErr == nil {
			dbErr = err
		}
		s.lock = nil
	}
	return dbErr
}

func (s *SQLiteStore) pruneExpired(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE status IN (?, ?) AND updated_at < ?`,
		string(StatusCompleted), string(StatusFailed), cutoff,
	)
	if err != nil {
		return fmt.Errorf("prune expired tasks: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT task_id, status, media_url, webhook_url, send_time,
		pickup_time, end_time, time_to_pickup, time_taken, process_time,
		worker_id, host, started_count, result_json, error_message,
		created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*TaskRecord, error) {
	var (
		record       TaskRecord
		status       string
		pickupTime   sql.NullInt64
		endTime      sql.NullInt64
		timeToPickup sql.NullFloat64
		timeTaken    sql.NullFloat64
		processTime  sql.NullFloat64
		workerID     sql.NullString
		host         sql.NullString
		resultJSON   sql.NullString
		errorMessage sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&record.TaskID, &status, &record.MediaURL, &record.WebhookURL,
		&record.SendTime, &pickupTime, &endTime, &timeToPickup, &timeTaken,
		&processTime, &workerID, &host, &record.StartedCount, &resultJSON,
		&errorMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	record.Status = parsed
	record.PickupTime = pickupTime.Int64
	record.EndTime = endTime.Int64
	record.TimeToPickup = timeToPickup.Float64
	record.TimeTaken = timeTaken.Float64
	record.ProcessTime = processTime.Float64
	record.WorkerID = workerID.String
	record.Host = host.String
	record.ErrorMessage = errorMessage.String

	record.Result, err = decodeResult(resultJSON.String)
	if err != nil {
		return nil, err
	}

	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		record.UpdatedAt = ts
	}
	return &record, nil
}
