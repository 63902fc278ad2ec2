package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dedupehq/dedupe-backend/internal/logger"
)

// RedisStore keeps each job as a hash keyed "job:<id>" alongside a set
// "jobs:<queue>" of ids per queue. Status transitions that must beat a
// concurrent worker or canceller run as Lua scripts so the compare and the
// set happen in one Redis step.
type RedisStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisStore(log *logger.Logger, rdb *goredis.Client) *RedisStore {
	return &RedisStore{
		log: log.With("component", "RedisJobStore"),
		rdb: rdb,
	}
}

func jobKey(id string) string       { return "job:" + id }
func queueSetKey(queue string) string { return "jobs:" + queue }

// markStartedScript: queued -> started, otherwise report the blocking
// status so the caller can tell canceled apart from already-running.
var markStartedScript = goredis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status == false then
  return "missing"
end
if status == "queued" then
  redis.call("HSET", KEYS[1], "status", "started", "started_at", ARGV[1])
  return "ok"
end
return status
`)

// cancelScript: queued -> canceled only.
var cancelScript = goredis.NewScript(`
local status = redis.call("HGET", KEYS[1], "status")
if status == false then
  return "missing"
end
if status == "queued" then
  redis.call("HSET", KEYS[1], "status", "canceled", "finished_at", ARGV[1])
  return "ok"
end
return status
`)

func (s *RedisStore) Create(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID),
		"data", data,
		"status", string(job.Status),
		"created_at", job.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	pipe.SAdd(ctx, queueSetKey(job.Queue), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	fields, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return hydrate(id, fields)
}

func (s *RedisStore) MarkStarted(ctx context.Context, id string) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := markStartedScript.Run(ctx, s.rdb, []string{jobKey(id)}, now).Text()
	if err != nil {
		return nil, fmt.Errorf("mark job %s started: %w", id, err)
	}
	switch res {
	case "ok":
		return s.Get(ctx, id)
	case "missing":
		return nil, ErrNotFound
	case string(StatusCanceled):
		return nil, ErrCanceled
	default:
		return nil, fmt.Errorf("%w: status %s", ErrNotRunnable, res)
	}
}

func (s *RedisStore) Finish(ctx context.Context, id string, summary *Summary) error {
	return s.conclude(ctx, id, StatusFinished, "", summary)
}

func (s *RedisStore) Fail(ctx context.Context, id string, errorRef string, summary *Summary) error {
	return s.conclude(ctx, id, StatusFailed, errorRef, summary)
}

func (s *RedisStore) conclude(ctx context.Context, id string, status Status, errorRef string, summary *Summary) error {
	vals := []interface{}{
		"status", string(status),
		"finished_at", time.Now().UTC().Format(time.RFC3339Nano),
	}
	if errorRef != "" {
		vals = append(vals, "error_ref", errorRef)
	}
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		vals = append(vals, "summary", data)
	}
	if err := s.rdb.HSet(ctx, jobKey(id), vals...).Err(); err != nil {
		return fmt.Errorf("conclude job %s as %s: %w", id, status, err)
	}
	return nil
}

func (s *RedisStore) CancelIfQueued(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := cancelScript.Run(ctx, s.rdb, []string{jobKey(id)}, now).Text()
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	switch res {
	case "ok":
		return true, nil
	case "missing":
		return false, ErrNotFound
	default:
		return false, nil
	}
}

func (s *RedisStore) ListByQueue(ctx context.Context, queue string) ([]*Job, error) {
	ids, err := s.rdb.SMembers(ctx, queueSetKey(queue)).Result()
	if err != nil {
		return nil, fmt.Errorf("list queue %s: %w", queue, err)
	}
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// Hash expired or was cleaned up; drop the stale registry entry.
			s.rdb.SRem(ctx, queueSetKey(queue), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *RedisStore) ListStale(ctx context.Context, threshold time.Duration) ([]*Job, error) {
	cutoff := time.Now().Add(-threshold)
	queues, err := s.rdb.Keys(ctx, "jobs:*").Result()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	var out []*Job
	for _, qk := range queues {
		ids, err := s.rdb.SMembers(ctx, qk).Result()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", qk, err)
		}
		for _, id := range ids {
			job, err := s.Get(ctx, id)
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			if job.Status == StatusStarted && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
				out = append(out, job)
			}
		}
	}
	return out, nil
}

// hydrate layers the live hash fields over the immutable job payload so
// status written by Lua scripts wins over the snapshot taken at Create.
func hydrate(id string, fields map[string]string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(fields["data"]), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	if v, ok := fields["status"]; ok {
		job.Status = Status(v)
	}
	if t, ok := parseTime(fields["started_at"]); ok {
		job.StartedAt = &t
	}
	if t, ok := parseTime(fields["finished_at"]); ok {
		job.FinishedAt = &t
	}
	if v, ok := fields["error_ref"]; ok && v != "" {
		job.ErrorRef = v
	}
	if v, ok := fields["summary"]; ok && v != "" {
		var sum Summary
		if err := json.Unmarshal([]byte(v), &sum); err != nil {
			return nil, fmt.Errorf("decode summary for job %s: %w", id, err)
		}
		job.Summary = &sum
	}
	return &job, nil
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
