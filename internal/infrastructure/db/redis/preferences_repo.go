package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	preferencesKey = "txeditor:preferences"
	updatedAtField = "updated_at"

	defaultNumOfRetries = 3
	retryDelay          = 50 * time.Millisecond
)

type preferencesRepository struct {
	rdb          *redis.Client
	numOfRetries int
}

// NewPreferencesRepository expects a redis URL and, optionally, the number of retries of
// a conflicting write.
func NewPreferencesRepository(config ...interface{}) (domain.PreferencesRepository, error) {
	if len(config) < 1 {
		return nil, fmt.Errorf("invalid config")
	}
	redisUrl, ok := config[0].(string)
	if !ok || len(redisUrl) <= 0 {
		return nil, fmt.Errorf("invalid redis url")
	}
	numOfRetries := defaultNumOfRetries
	if len(config) > 1 {
		n, ok := config[1].(int)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("invalid number of retries")
		}
		numOfRetries = n
	}

	opts, err := redis.ParseURL(redisUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &preferencesRepository{redis.NewClient(opts), numOfRetries}, nil
}

func (r *preferencesRepository) Get(ctx context.Context) (*domain.Preferences, error) {
	fields, err := r.rdb.HGetAll(ctx, preferencesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	if len(fields) <= 0 {
		return nil, nil
	}

	prefs := domain.NewPreferences()
	for _, key := range prefs.Keys() {
		value, ok := fields[key]
		if !ok {
			continue
		}
		if err := prefs.Set(key, value); err != nil {
			log.WithError(err).Warnf("ignoring stored preference %s", key)
		}
	}
	if updatedAt, ok := fields[updatedAtField]; ok {
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			prefs.UpdatedAt = t
		}
	}
	return prefs, nil
}

func (r *preferencesRepository) Upsert(ctx context.Context, prefs domain.Preferences) (err error) {
	values := make(map[string]string)
	for _, key := range prefs.Keys() {
		value, err := prefs.Get(key)
		if err != nil {
			return err
		}
		values[key] = value
	}
	values[updatedAtField] = prefs.UpdatedAt.Format(time.RFC3339Nano)

	// Only the fields that differ from the stored ones are written, the write fails if
	// the hash changes in between.
	upsert := func(tx *redis.Tx) error {
		stored, err := tx.HGetAll(ctx, preferencesKey).Result()
		if err != nil {
			return err
		}
		changed := make(map[string]interface{})
		for key, value := range values {
			if storedValue, ok := stored[key]; !ok || storedValue != value {
				changed[key] = value
			}
		}
		if len(changed) <= 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, preferencesKey, changed)
			return nil
		})
		return err
	}

	for attempt := range r.numOfRetries {
		err = r.rdb.Watch(ctx, upsert, preferencesKey)
		if !isConflictError(err) {
			break
		}
		log.Debugf("conflicting preferences write, retrying (%d/%d)", attempt+1, r.numOfRetries)
		time.Sleep(time.Duration(attempt+1) * retryDelay)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

func (r *preferencesRepository) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, preferencesKey).Err()
}

func (r *preferencesRepository) Close() {
	// nolint:all
	r.rdb.Close()
}

func isConflictError(err error) bool {
	return errors.Is(err, redis.TxFailedErr)
}
