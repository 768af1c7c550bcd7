package taskstore

import (
	"context"
	"errors"
	"fmt"

	"scribe/internal/config"
)

// ErrNotFound is returned by lookups for unknown task identifiers.
var ErrNotFound = errors.New("task not found")

// ClaimOutcome describes the result of a claim attempt.
type ClaimOutcome int

const (
	// ClaimNotFound means no record exists for the task identifier.
	ClaimNotFound ClaimOutcome = iota
	// ClaimAlreadyTaken means the task left the sent status before this
	// attempt. The caller must not process the task.
	ClaimAlreadyTaken
	// Claimed means this caller won the task and owns its processing.
	Claimed
)

func (o ClaimOutcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case ClaimAlreadyTaken:
		return "already-taken"
	default:
		return "not-found"
	}
}

// Claim carries the identity and pickup moment of a claim attempt. Worker
// identity is only persisted when the attempt wins.
type Claim struct {
	WorkerID   string
	Host       string
	PickupTime int64
}

// Terminal carries a final outcome write. Exactly one of Result or
// ErrorMessage is expected to be set depending on Status.
type Terminal struct {
	Status       Status
	Result       *Result
	ErrorMessage string
	EndTime      int64
}

// Store persists task lifecycle state. Claim must be atomic: of any number
// of concurrent attempts against a sent task, exactly one observes Claimed.
type Store interface {
	// Create inserts a new record in the sent status.
	Create(ctx context.Context, record *TaskRecord) error
	// Claim attempts the sent to started transition.
	Claim(ctx context.Context, taskID string, claim Claim) (ClaimOutcome, error)
	// RecordTerminal writes the final status, result or error, and derived
	// timing fields.
	RecordTerminal(ctx context.Context, taskID string, terminal Terminal) error
	// Get fetches a single record or ErrNotFound.
	Get(ctx context.Context, taskID string) (*TaskRecord, error)
	// ListByStatus returns up to limit records, newest first. A zero limit
	// means no cap.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*TaskRecord, error)
	// Stats counts records per status.
	Stats(ctx context.Context) (map[Status]int64, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Reconnect re-establishes the backend connection after a failure.
	Reconnect(ctx context.Context) error
	Close() error
}

// Open builds the store selected by configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		return OpenRedis(ctx, cfg)
	case config.StoreBackendSQLite:
		return OpenSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", cfg.Store.Backend)
	}
}

// OpenInspector opens the store for read-mostly CLI use. The SQLite
// backend skips the exclusive file lock so the CLI can inspect tasks
// while the daemon runs.
func OpenInspector(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		return OpenRedis(ctx, cfg)
	case config.StoreBackendSQLite:
		return openSQLiteUnlocked(ctx, cfg)
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", cfg.Store.Backend)
	}
}
