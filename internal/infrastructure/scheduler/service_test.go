package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/arkade-os/txeditor/internal/core/ports"
	timescheduler "github.com/arkade-os/txeditor/internal/infrastructure/scheduler/gocron"
	intervalscheduler "github.com/arkade-os/txeditor/internal/infrastructure/scheduler/interval"
	"github.com/stretchr/testify/require"
)

type service struct {
	name      string
	scheduler ports.Ticker
}

func TestEvery(t *testing.T) {
	t.Parallel()

	svcs := servicesToTest(t)

	for _, svc := range svcs {
		t.Run(svc.name, func(t *testing.T) {
			var count int64
			cancel, err := svc.scheduler.Every(200*time.Millisecond, func() {
				atomic.AddInt64(&count, 1)
			})
			require.NoError(t, err)
			require.NotNil(t, cancel)

			require.Eventually(t, func() bool {
				return atomic.LoadInt64(&count) >= 3
			}, 3*time.Second, 50*time.Millisecond)

			cancel()
			// Let a run already in flight complete.
			time.Sleep(300 * time.Millisecond)
			stopped := atomic.LoadInt64(&count)

			time.Sleep(time.Second)
			require.Equal(t, stopped, atomic.LoadInt64(&count))
		})
	}
}

func TestEveryInvalidInterval(t *testing.T) {
	t.Parallel()

	svcs := servicesToTest(t)

	for _, svc := range svcs {
		t.Run(svc.name, func(t *testing.T) {
			cancel, err := svc.scheduler.Every(0, func() {})
			require.Error(t, err)
			require.Nil(t, cancel)
		})
	}
}

func servicesToTest(t *testing.T) []service {
	svcs := []service{
		{name: "gocron", scheduler: timescheduler.NewScheduler()},
		{
			name: "interval",
			scheduler: intervalscheduler.NewScheduler(
				intervalscheduler.WithResolution(10 * time.Millisecond),
			),
		},
	}

	for _, svc := range svcs {
		svc.scheduler.Start()
		t.Cleanup(func() { svc.scheduler.Stop() })
	}

	return svcs
}
