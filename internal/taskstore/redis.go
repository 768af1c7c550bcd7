package taskstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scribe/internal/config"
)

const taskKeyPrefix = "scribe:task:"

// claimScript performs the sent to started transition atomically on the
// server. Return values: -1 no such task, 0 already taken, 1 claimed.
var claimScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
	return -1
end
if redis.call('HGET', key, 'status') ~= 'sent' then
	return 0
end
local send = tonumber(redis.call('HGET', key, 'send_time')) or 0
local pickup = tonumber(ARGV[1])
redis.call('HSET', key,
	'status', 'started',
	'pickup_time', ARGV[1],
	'time_to_pickup', pickup - send,
	'worker_id', ARGV[2],
	'host', ARGV[3],
	'updated_at', ARGV[4])
redis.call('HINCRBY', key, 'started_count', 1)
return 1
`)

// RedisStore keeps each task as a hash keyed by task identifier. Terminal
// records optionally expire after the configured retention window.
type RedisStore struct {
	client    *redis.Client
	opts      *redis.Options
	retention time.Duration
}

// OpenRedis connects to the configured Redis instance.
func OpenRedis(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	store := &RedisStore{
		client: redis.NewClient(opts),
		opts:   opts,
	}
	if cfg.Store.RetentionDays > 0 {
		store.retention = time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect redis store: %w", err)
	}
	return store, nil
}

func taskKey(taskID string) string {
	return taskKeyPrefix + taskID
}

// Create inserts a new sent record. An existing key for the same task
// identifier is rejected.
func (s *RedisStore) Create(ctx context.Context, record *TaskRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	key := taskKey(record.TaskID)
	created, err := s.client.HSetNX(ctx, key, "task_id", record.TaskID).Result()
	if err != nil {
		return fmt.Errorf("insert task %s: %w", record.TaskID, err)
	}
	if !created {
		return fmt.Errorf("insert task %s: already exists", record.TaskID)
	}

	fields := map[string]any{
		"status":        string(record.Status),
		"media_url":     record.MediaURL,
		"webhook_url":   record.WebhookURL,
		"send_time":     record.SendTime,
		"started_count": record.StartedCount,
		"created_at":    record.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    record.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("insert task %s: %w", record.TaskID, err)
	}
	return nil
}

// Claim runs the atomic claim script for the task.
func (s *RedisStore) Claim(ctx context.Context, taskID string, claim Claim) (ClaimOutcome, error) {
	result, err := claimScript.Run(ctx, s.client,
		[]string{taskKey(taskID)},
		claim.PickupTime,
		claim.WorkerID,
		claim.Host,
		time.Now().UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return ClaimNotFound, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	switch result {
	case 1:
		return Claimed, nil
	case 0:
		return ClaimAlreadyTaken, nil
	default:
		return ClaimNotFound, nil
	}
}

// RecordTerminal writes the final status, timings, and payload, then arms
// the retention expiry if one is configured.
func (s *RedisStore) RecordTerminal(ctx context.Context, taskID string, terminal Terminal) error {
	if !terminal.Status.Terminal() {
		return fmt.Errorf("record terminal for %s: %s is not terminal", taskID, terminal.Status)
	}
	key := taskKey(taskID)

	times, err := s.client.HMGet(ctx, key, "send_time", "pickup_time").Result()
	if err != nil {
		return fmt.Errorf("record terminal for %s: %w", taskID, err)
	}
	if times[0] == nil {
		return fmt.Errorf("record terminal for %s: %w", taskID, ErrNotFound)
	}
	sendTime := parseInt64Field(times[0])
	pickupTime := parseInt64Field(times[1])

	resultJSON, err := encodeResult(terminal.Result)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"status":        string(terminal.Status),
		"end_time":      terminal.EndTime,
		"time_taken":    float64(terminal.EndTime - sendTime),
		"result_json":   resultJSON,
		"error_message": terminal.ErrorMessage,
		"updated_at":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if pickupTime > 0 {
		fields["process_time"] = float64(terminal.EndTime - pickupTime)
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("record terminal for %s: %w", taskID, err)
	}

	if s.retention > 0 {
		if err := s.client.Expire(ctx, key, s.retention).Err(); err != nil {
			return fmt.Errorf("record terminal for %s: set retention: %w", taskID, err)
		}
	}
	return nil
}

// Get fetches a record by task identifier.
func (s *RedisStore) Get(ctx context.Context, taskID string) (*TaskRecord, error) {
	fields, err := s.client.HGetAll(ctx, taskKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("get task %s: %w", taskID, ErrNotFound)
	}
	record, err := recordFromHash(fields)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return record, nil
}

// ListByStatus scans task keys and filters by status. Redis is the live
// operational store here, not an archive, so the scan stays small.
func (s *RedisStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*TaskRecord, error) {
	var records []*TaskRecord
	iter := s.client.Scan(ctx, 0, taskKeyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("list %s tasks: %w", status, err)
		}
		if len(fields) == 0 || fields["status"] != string(status) {
			continue
		}
		record, err := recordFromHash(fields)
		if err != nil {
			return nil, fmt.Errorf("list %s tasks: %w", status, err)
		}
		records = append(records, record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list %s tasks: %w", status, err)
	}

	sortRecordsBySendTimeDesc(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Stats counts records per status.
func (s *RedisStore) Stats(ctx context.Context) (map[Status]int64, error) {
	stats := make(map[Status]int64, 4)
	for _, status := range AllStatuses() {
		stats[status] = 0
	}

	iter := s.client.Scan(ctx, 0, taskKeyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.HGet(ctx, iter.Val(), "status").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("task stats: %w", err)
		}
		if status, err := ParseStatus(raw); err == nil {
			stats[status]++
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// Ping verifies the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Reconnect replaces the client with a fresh connection.
func (s *RedisStore) Reconnect(ctx context.Context) error {
	if s.client != nil {
		_ = s.client.Close()
	}
	s.client = redis.NewClient(s.opts)
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("reconnect redis store: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func recordFromHash(fields map[string]string) (*TaskRecord, error) {
	status, err := ParseStatus(fields["status"])
	if err != nil {
		return nil, err
	}

	record := &TaskRecord{
		TaskID:       fields["task_id"],
		Status:       status,
		MediaURL:     fields["media_url"],
		WebhookURL:   fields["webhook_url"],
		SendTime:     parseInt64Field(fields["send_time"]),
		PickupTime:   parseInt64Field(fields["pickup_time"]),
		EndTime:      parseInt64Field(fields["end_time"]),
		TimeToPickup: parseFloatField(fields["time_to_pickup"]),
		TimeTaken:    parseFloatField(fields["time_taken"]),
		ProcessTime:  parseFloatField(fields["process_time"]),
		WorkerID:     fields["worker_id"],
		Host:         fields["host"],
		StartedCount: parseInt64Field(fields["started_count"]),
		ErrorMessage: fields["error_message"],
	}

	record.Result, err = decodeResult(fields["result_json"])
	if err != nil {
		return nil, err
	}

	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		record.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		record.UpdatedAt = ts
	}
	return record, nil
}

func parseInt64Field(value any) int64 {
	switch v := value.(type) {
	case string:
		parsed, _ := strconv.ParseInt(v, 10, 64)
		return parsed
	case int64:
		return v
	default:
		return 0
	}
}

func parseFloatField(value string) float64 {
	parsed, _ := strconv.ParseFloat(value, 64)
	return parsed
}

func sortRecordsBySendTimeDesc(records []*TaskRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].SendTime > records[j].SendTime
	})
}
