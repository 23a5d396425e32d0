package ports

import "github.com/arkade-os/txeditor/internal/core/domain"

type RepoManager interface {
	Preferences() domain.PreferencesRepository
	Close()
}
