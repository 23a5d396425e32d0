package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arkade-os/txeditor/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	preferencesStoreDir = "preferences"
	preferencesKey      = "preferences"
)

type preferencesRepository struct {
	store *badgerhold.Store
}

func NewPreferencesRepository(config ...interface{}) (domain.PreferencesRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, preferencesStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences store: %s", err)
	}

	return &preferencesRepository{store}, nil
}

func (r *preferencesRepository) Get(ctx context.Context) (*domain.Preferences, error) {
	var prefs domain.Preferences
	err := r.store.Get(preferencesKey, &prefs)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &prefs, nil
}

func (r *preferencesRepository) Upsert(ctx context.Context, prefs domain.Preferences) error {
	err := r.store.Upsert(preferencesKey, &prefs)
	for attempts := 1; errors.Is(err, badger.ErrConflict) && attempts <= maxRetries; attempts++ {
		time.Sleep(100 * time.Millisecond)
		err = r.store.Upsert(preferencesKey, &prefs)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

func (r *preferencesRepository) Clear(ctx context.Context) error {
	var prefs domain.Preferences
	if err := r.store.Delete(preferencesKey, &prefs); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (r *preferencesRepository) Close() {
	// nolint:all
	r.store.Close()
}
