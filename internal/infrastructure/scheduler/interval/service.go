package intervalscheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/arkade-os/txeditor/internal/core/ports"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Option func(*service)

// WithResolution sets how often the scheduler checks for due tasks.
func WithResolution(resolution time.Duration) Option {
	return func(s *service) {
		s.resolution = resolution
	}
}

type task struct {
	interval time.Duration
	nextRun  time.Time
	run      func()
	running  bool
}

type service struct {
	lock       sync.Mutex
	tasks      map[string]*task
	stopCh     chan struct{}
	stopOnce   sync.Once
	resolution time.Duration
}

// NewScheduler returns a ticker driven by a single time.Ticker polling the registered tasks.
func NewScheduler(opts ...Option) ports.Ticker {
	svc := &service{
		tasks:      make(map[string]*task),
		stopCh:     make(chan struct{}),
		resolution: 50 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

func (s *service) Start() {
	go func() {
		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case now := <-ticker.C:
				tasks := s.popDueTasks(now)
				if len(tasks) > 0 {
					log.Tracef("running %d due tasks", len(tasks))
				}
				for _, t := range tasks {
					go s.runTask(t)
				}
			}
		}
	}()
}

func (s *service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *service) Every(interval time.Duration, run func()) (func(), error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}

	id := uuid.New().String()

	s.lock.Lock()
	defer s.lock.Unlock()

	s.tasks[id] = &task{
		interval: interval,
		nextRun:  time.Now().Add(interval),
		run:      run,
	}

	cancel := func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		delete(s.tasks, id)
	}
	return cancel, nil
}

// popDueTasks returns the tasks due at now that are not already running.
func (s *service) popDueTasks(now time.Time) []*task {
	s.lock.Lock()
	defer s.lock.Unlock()

	tasks := make([]*task, 0)
	for _, t := range s.tasks {
		if t.running || now.Before(t.nextRun) {
			continue
		}
		t.running = true
		t.nextRun = now.Add(t.interval)
		tasks = append(tasks, t)
	}
	return tasks
}

func (s *service) runTask(t *task) {
	defer func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		t.running = false
	}()
	t.run()
}
