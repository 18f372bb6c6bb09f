package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lattice/pkg/domain"
)

// Recorder implements ports.RunRecorder using Redis.
// Records are stored as JSON strings and indexed in a sorted set scored by expiry.
type Recorder struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Recorder)

// WithTTL sets the expiration for run records.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recorder) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix for run records.
func WithPrefix(prefix string) Option {
	return func(r *Recorder) {
		r.prefix = prefix
	}
}

// New creates a new Redis recorder with options.
func New(address, password string, db int, opts ...Option) *Recorder {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromURL creates a recorder from a redis:// or rediss:// URL.
func NewFromURL(url string, opts ...Option) (*Recorder, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient creates a new Redis recorder from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Recorder {
	r := &Recorder{
		client: client,
		prefix: "lattice:run:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (r *Recorder) Client() *backend.Client {
	return r.client
}

func (r *Recorder) key(runID string) string {
	return r.prefix + runID
}

func (r *Recorder) indexKey() string {
	return r.prefix + "index"
}

// Save persists the record to Redis.
func (r *Recorder) Save(ctx context.Context, record *domain.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(record.RunID), data, r.ttl)

	// Score = expiry time; far future when records never expire.
	score := float64(time.Now().Add(r.ttl).Unix())
	if r.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{
		Score:  score,
		Member: record.RunID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a record from Redis.
func (r *Recorder) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	val, err := r.client.Get(ctx, r.key(runID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return &record, nil
}

// Delete removes the record.
func (r *Recorder) Delete(ctx context.Context, runID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(runID))
	pipe.ZRem(ctx, r.indexKey(), runID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns the recorded run IDs, pruning expired entries from the index first.
func (r *Recorder) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}

	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (r *Recorder) Close() error {
	return r.client.Close()
}
