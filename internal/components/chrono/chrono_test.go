package chrono

import (
	"sync/atomic"
	"testing"
	"testudot/internal/components/telemetry"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStandardTimeIsEastern(t *testing.T) {
	require.Equal(t, "America/New_York", NewStandardTime().Now().Location().String())
}

func TestEveryMinutes(t *testing.T) {
	require.Equal(t, "@every 15m", EveryMinutes(15))
}

func TestCronSchedulesAndStops(t *testing.T) {
	tel := telemetry.NewRecordingAPI()
	cron := NewStandardCron(tel)
	require.True(t, cron.Next().IsZero())

	require.Error(t, cron.Cron("every now and then", func() {}))

	var runs atomic.Int64
	require.NoError(t, cron.Cron("@every 1s", func() {
		runs.Add(1)
	}))
	next := cron.Next()
	require.False(t, next.IsZero())
	require.WithinDuration(t, time.Now().Add(time.Second), next, 2*time.Second)

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	<-cron.Stop().Done()
}

func TestCronRecoversPanics(t *testing.T) {
	tel := telemetry.NewRecordingAPI()
	cron := NewStandardCron(tel)
	defer cron.Stop()

	require.NoError(t, cron.Cron("@every 1s", func() {
		panic("batch exploded")
	}))
	require.Eventually(t, func() bool {
		return len(tel.Reports("broken", "cron")) > 0
	}, 5*time.Second, 50*time.Millisecond)
}
