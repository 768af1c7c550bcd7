package taskstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"scribe/internal/config"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = config.StoreBackendSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "tasks.db")

	store, err := OpenSQLite(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store.Backend = config.StoreBackendRedis
	cfg.Redis.Addr = mr.Addr()

	store, err := OpenRedis(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func backends(t *testing.T) map[string]func(*testing.T) Store {
	t.Helper()
	return map[string]func(*testing.T) Store{
		"sqlite": newSQLiteStore,
		"redis":  newRedisStore,
	}
}

func newTestRecord(taskID string) *TaskRecord {
	return &TaskRecord{
		TaskID:     taskID,
		Status:     StatusSent,
		MediaURL:   "https://example.com/talk.mp4",
		WebhookURL: "https://example.com/hook",
		SendTime:   time.Now().Unix() - 5,
	}
}

func TestCreateAndGet(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			record := newTestRecord("task-1")
			if err := store.Create(ctx, record); err != nil {
				t.Fatalf("create: %v", err)
			}

			got, err := store.Get(ctx, "task-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != StatusSent {
				t.Fatalf("status = %s, want sent", got.Status)
			}
			if got.MediaURL != record.MediaURL {
				t.Fatalf("media_url = %q", got.MediaURL)
			}
			if got.StartedCount != 0 {
				t.Fatalf("started_count = %d, want 0", got.StartedCount)
			}
		})
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			_, err := store.Get(context.Background(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestClaimTransitionsAndRecordsPickup(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			record := newTestRecord("task-claim")
			if err := store.Create(ctx, record); err != nil {
				t.Fatalf("create: %v", err)
			}

			pickup := record.SendTime + 3
			outcome, err := store.Claim(ctx, "task-claim", Claim{
				WorkerID:   "worker-a",
				Host:       "host-a",
				PickupTime: pickup,
			})
			if err != nil {
				t.Fatalf("claim: %v", err)
			}
			if outcome != Claimed {
				t.Fatalf("outcome = %s, want claimed", outcome)
			}

			got, err := store.Get(ctx, "task-claim")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != StatusStarted {
				t.Fatalf("status = %s, want started", got.Status)
			}
			if got.WorkerID != "worker-a" || got.Host != "host-a" {
				t.Fatalf("claim identity not recorded: %+v", got)
			}
			if got.PickupTime != pickup {
				t.Fatalf("pickup_time = %d, want %d", got.PickupTime, pickup)
			}
			if got.TimeToPickup != 3 {
				t.Fatalf("time_to_pickup = %v, want 3", got.TimeToPickup)
			}
			if got.StartedCount != 1 {
				t.Fatalf("started_count = %d, want 1", got.StartedCount)
			}
		})
	}
}

func TestClaimSecondAttemptLoses(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			if err := store.Create(ctx, newTestRecord("task-dup")); err != nil {
				t.Fatalf("create: %v", err)
			}

			first, err := store.Claim(ctx, "task-dup", Claim{WorkerID: "a", Host: "h", PickupTime: time.Now().Unix()})
			if err != nil || first != Claimed {
				t.Fatalf("first claim = %v, %v", first, err)
			}

			second, err := store.Claim(ctx, "task-dup", Claim{WorkerID: "b", Host: "h", PickupTime: time.Now().Unix()})
			if err != nil {
				t.Fatalf("second claim: %v", err)
			}
			if second != ClaimAlreadyTaken {
				t.Fatalf("second claim = %s, want already-taken", second)
			}

			got, err := store.Get(ctx, "task-dup")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.WorkerID != "a" {
				t.Fatalf("losing claim overwrote worker identity: %q", got.WorkerID)
			}
			if got.StartedCount != 1 {
				t.Fatalf("started_count = %d, want 1", got.StartedCount)
			}
		})
	}
}

func TestClaimUnknownTask(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			outcome, err := store.Claim(context.Background(), "ghost", Claim{WorkerID: "a", PickupTime: time.Now().Unix()})
			if err != nil {
				t.Fatalf("claim: %v", err)
			}
			if outcome != ClaimNotFound {
				t.Fatalf("outcome = %s, want not-found", outcome)
			}
		})
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			if err := store.Create(ctx, newTestRecord("task-race")); err != nil {
				t.Fatalf("create: %v", err)
			}

			const attempts = 16
			var wg sync.WaitGroup
			outcomes := make([]ClaimOutcome, attempts)
			errs := make([]error, attempts)

			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					outcomes[i], errs[i] = store.Claim(ctx, "task-race", Claim{
						WorkerID:   "worker",
						Host:       "host",
						PickupTime: time.Now().Unix(),
					})
				}(i)
			}
			wg.Wait()

			winners := 0
			for i := 0; i < attempts; i++ {
				if errs[i] != nil {
					t.Fatalf("claim %d: %v", i, errs[i])
				}
				if outcomes[i] == Claimed {
					winners++
				}
			}
			if winners != 1 {
				t.Fatalf("winners = %d, want exactly 1", winners)
			}

			got, err := store.Get(ctx, "task-race")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.StartedCount != 1 {
				t.Fatalf("started_count = %d, want 1", got.StartedCount)
			}
		})
	}
}

func TestRecordTerminalCompleted(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			record := newTestRecord("task-done")
			if err := store.Create(ctx, record); err != nil {
				t.Fatalf("create: %v", err)
			}
			pickup := record.SendTime + 2
			if _, err := store.Claim(ctx, "task-done", Claim{WorkerID: "w", Host: "h", PickupTime: pickup}); err != nil {
				t.Fatalf("claim: %v", err)
			}

			end := record.SendTime + 10
			terminal := Terminal{
				Status: StatusCompleted,
				Result: &Result{
					Transcription: "hello world",
					ActionPoints:  []ActionPoint{{Task: "ship it", Details: "end of standup"}},
				},
				EndTime: end,
			}
			if err := store.RecordTerminal(ctx, "task-done", terminal); err != nil {
				t.Fatalf("record terminal: %v", err)
			}

			got, err := store.Get(ctx, "task-done")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != StatusCompleted {
				t.Fatalf("status = %s", got.Status)
			}
			if got.TimeTaken != 10 {
				t.Fatalf("time_taken = %v, want 10", got.TimeTaken)
			}
			if got.ProcessTime != 8 {
				t.Fatalf("process_time = %v, want 8", got.ProcessTime)
			}
			if got.Result == nil || got.Result.Transcription != "hello world" {
				t.Fatalf("result not persisted: %+v", got.Result)
			}
			if len(got.Result.ActionPoints) != 1 || got.Result.ActionPoints[0].Task != "ship it" {
				t.Fatalf("action points not persisted: %+v", got.Result)
			}
		})
	}
}

func TestRecordTerminalFailed(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			record := newTestRecord("task-bad")
			if err := store.Create(ctx, record); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := store.Claim(ctx, "task-bad", Claim{WorkerID: "w", Host: "h", PickupTime: record.SendTime + 1}); err != nil {
				t.Fatalf("claim: %v", err)
			}

			err := store.RecordTerminal(ctx, "task-bad", Terminal{
				Status:       StatusFailed,
				ErrorMessage: "downloading: all strategies exhausted",
				EndTime:      record.SendTime + 4,
			})
			if err != nil {
				t.Fatalf("record terminal: %v", err)
			}

			got, err := store.Get(ctx, "task-bad")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != StatusFailed {
				t.Fatalf("status = %s", got.Status)
			}
			if got.ErrorMessage == "" {
				t.Fatal("error message not persisted")
			}
			if got.Result != nil {
				t.Fatalf("failed task should have no result, got %+v", got.Result)
			}
		})
	}
}

func TestRecordTerminalRejectsNonTerminalStatus(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			err := store.RecordTerminal(context.Background(), "any", Terminal{Status: StatusStarted})
			if err == nil {
				t.Fatal("expected rejection of non-terminal status")
			}
		})
	}
}

func TestListByStatusAndStats(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			ctx := context.Background()

			for i, id := range []string{"t1", "t2", "t3"} {
				record := newTestRecord(id)
				record.SendTime = time.Now().Unix() + int64(i)
				if err := store.Create(ctx, record); err != nil {
					t.Fatalf("create %s: %v", id, err)
				}
			}
			if _, err := store.Claim(ctx, "t2", Claim{WorkerID: "w", Host: "h", PickupTime: time.Now().Unix()}); err != nil {
				t.Fatalf("claim: %v", err)
			}

			sent, err := store.ListByStatus(ctx, StatusSent, 0)
			if err != nil {
				t.Fatalf("list sent: %v", err)
			}
			if len(sent) != 2 {
				t.Fatalf("sent count = %d, want 2", len(sent))
			}
			if sent[0].SendTime < sent[1].SendTime {
				t.Fatal("list should be newest first")
			}

			limited, err := store.ListByStatus(ctx, StatusSent, 1)
			if err != nil {
				t.Fatalf("list limited: %v", err)
			}
			if len(limited) != 1 {
				t.Fatalf("limited count = %d, want 1", len(limited))
			}

			stats, err := store.Stats(ctx)
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if stats[StatusSent] != 2 || stats[StatusStarted] != 1 {
				t.Fatalf("stats = %v", stats)
			}
		})
	}
}

func TestCreateRejectsInvalidRecord(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			err := store.Create(context.Background(), &TaskRecord{TaskID: "x", Status: StatusSent})
			if err == nil {
				t.Fatal("expected validation error for missing media_url")
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("SENT"); err != nil {
		t.Fatalf("uppercase should parse: %v", err)
	}
	if _, err := ParseStatus("queued"); err == nil {
		t.Fatal("unknown status should be rejected")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Fatal("completed and failed are terminal")
	}
	if StatusSent.Terminal() || StatusStarted.Terminal() {
		t.Fatal("sent and started are not terminal")
	}
}
