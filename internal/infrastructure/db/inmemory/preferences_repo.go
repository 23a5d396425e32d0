package inmemorydb

import (
	"context"
	"sync"

	"github.com/arkade-os/txeditor/internal/core/domain"
)

type preferencesRepository struct {
	lock  sync.RWMutex
	prefs *domain.Preferences
}

func NewPreferencesRepository(_ ...interface{}) (domain.PreferencesRepository, error) {
	return &preferencesRepository{}, nil
}

func (r *preferencesRepository) Get(_ context.Context) (*domain.Preferences, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.prefs == nil {
		return nil, nil
	}
	prefs := *r.prefs
	return &prefs, nil
}

func (r *preferencesRepository) Upsert(_ context.Context, prefs domain.Preferences) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.prefs = &prefs
	return nil
}

func (r *preferencesRepository) Clear(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.prefs = nil
	return nil
}

func (r *preferencesRepository) Close() {}
