package timescheduler

import (
	"fmt"
	"time"

	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.Ticker {
	svc := gocron.NewScheduler(time.UTC)
	// A task still running when its next tick fires is skipped.
	svc.SingletonModeAll()
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
	s.scheduler.Clear()
}

func (s *service) Every(interval time.Duration, task func()) (func(), error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}

	job, err := s.scheduler.Every(interval).WaitForSchedule().Do(task)
	if err != nil {
		return nil, err
	}

	cancel := func() {
		s.scheduler.RemoveByReference(job)
		log.Debugf("removed task scheduled every %s", interval)
	}
	return cancel, nil
}
