package jobs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growfund/backend/internal/config"
)

func testJobsConfig() *config.JobsConfig {
	return &config.JobsConfig{
		DailyTickSpec:  "0 0 * * *",
		DailyShareSpec: "0 1 * * *",
		LevelShareSpec: "0 2 * * *",
		GameResetSpec:  "* * * * *",
		Timezone:       "UTC",
	}
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(testJobsConfig(), nil, nil, nil, nil)
	require.NoError(t, err)
	return s
}

func TestNewScheduler(t *testing.T) {
	t.Run("valid config registers all jobs", func(t *testing.T) {
		s := newTestScheduler(t)
		status := s.Status()
		assert.Len(t, status, 4)
		for _, name := range []string{JobDailyTick, JobDailyShare, JobLevelShare, JobGameReset} {
			st, ok := status[name]
			assert.True(t, ok, "job %s registered", name)
			assert.False(t, st.Running)
			assert.Nil(t, st.LastRun)
		}
	})

	t.Run("unknown timezone rejected", func(t *testing.T) {
		cfg := testJobsConfig()
		cfg.Timezone = "Mars/Olympus"
		_, err := NewScheduler(cfg, nil, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Mars/Olympus")
	})

	t.Run("malformed cron spec rejected", func(t *testing.T) {
		cfg := testJobsConfig()
		cfg.DailyShareSpec = "every day at one"
		_, err := NewScheduler(cfg, nil, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), JobDailyShare)
	})
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(t)
	err := s.RunNow("vacuum_full")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}

func TestScheduler_RunGuarded(t *testing.T) {
	s := newTestScheduler(t)

	t.Run("records the outcome of a run", func(t *testing.T) {
		boom := errors.New("tick exploded")
		err := s.runGuarded(JobDailyTick, func() error { return boom })
		assert.ErrorIs(t, err, boom)

		st := s.Status()[JobDailyTick]
		assert.False(t, st.Running)
		require.NotNil(t, st.LastRun)
		assert.Equal(t, "tick exploded", st.LastError)

		err = s.runGuarded(JobDailyTick, func() error { return nil })
		require.NoError(t, err)
		assert.Empty(t, s.Status()[JobDailyTick].LastError)
	})

	t.Run("in-flight run makes the next trigger skip", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- s.runGuarded(JobGameReset, func() error {
				close(started)
				<-release
				return nil
			})
		}()

		<-started
		assert.ErrorIs(t, s.runGuarded(JobGameReset, func() error { return nil }), ErrJobRunning)
		assert.True(t, s.Status()[JobGameReset].Running)

		close(release)
		require.NoError(t, <-done)
		assert.False(t, s.Status()[JobGameReset].Running)
	})
}
