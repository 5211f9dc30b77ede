package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/services"
)

// Job names, used as keys in Status and by the admin run-now endpoints.
const (
	JobDailyTick  = "daily_tick"
	JobDailyShare = "daily_profit_share"
	JobLevelShare = "level_based_share"
	JobGameReset  = "game_reset"
)

// JobStatus is the scheduler's view of one registered job.
type JobStatus struct {
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Scheduler owns the cron runner and the per-job in-flight guards. A slow
// run never overlaps itself: the next trigger is skipped, not queued.
type Scheduler struct {
	cron         *cron.Cron
	accrual      *services.AccrualService
	distribution *services.DistributionService
	colorGame    *services.ColorGameService
	numberGame   *services.NumberGameService

	mu     sync.Mutex
	status map[string]*JobStatus
}

func NewScheduler(cfg *config.JobsConfig, accrual *services.AccrualService, distribution *services.DistributionService, colorGame *services.ColorGameService, numberGame *services.NumberGameService) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("jobs timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		accrual:      accrual,
		distribution: distribution,
		colorGame:    colorGame,
		numberGame:   numberGame,
		status: map[string]*JobStatus{
			JobDailyTick:  {},
			JobDailyShare: {},
			JobLevelShare: {},
			JobGameReset:  {},
		},
	}

	register := func(spec, name string, run func() error) error {
		_, err := s.cron.AddFunc(spec, func() {
			if err := s.runGuarded(name, run); err != nil {
				log.WithError(err).WithField("job", name).Error("[SCHEDULER] job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("jobs %s spec %q: %w", name, spec, err)
		}
		return nil
	}

	if err := register(cfg.DailyTickSpec, JobDailyTick, s.runDailyTick); err != nil {
		return nil, err
	}
	if err := register(cfg.DailyShareSpec, JobDailyShare, s.runDailyShare); err != nil {
		return nil, err
	}
	if err := register(cfg.LevelShareSpec, JobLevelShare, s.runLevelShare); err != nil {
		return nil, err
	}
	if err := register(cfg.GameResetSpec, JobGameReset, s.runGameReset); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("[SCHEDULER] started")
}

// Stop halts triggering and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("[SCHEDULER] stopped")
}

// Status returns a snapshot of every job's state.
func (s *Scheduler) Status() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]JobStatus, len(s.status))
	for name, st := range s.status {
		snapshot[name] = *st
	}
	return snapshot
}

// ErrJobRunning is returned by RunNow when the named job is in flight.
var ErrJobRunning = fmt.Errorf("job already running")

// RunNow triggers a job outside its schedule, for the admin endpoints. It
// shares the in-flight guard with the cron triggers.
func (s *Scheduler) RunNow(name string) error {
	var run func() error
	switch name {
	case JobDailyTick:
		run = s.runDailyTick
	case JobDailyShare:
		run = s.runDailyShare
	case JobLevelShare:
		run = s.runLevelShare
	case JobGameReset:
		run = s.runGameReset
	default:
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runGuarded(name, run)
}

func (s *Scheduler) runGuarded(name string, run func() error) error {
	s.mu.Lock()
	st := s.status[name]
	if st.Running {
		s.mu.Unlock()
		log.WithField("job", name).Warn("[SCHEDULER] previous run still in flight, skipping")
		return ErrJobRunning
	}
	st.Running = true
	s.mu.Unlock()

	err := run()

	now := time.Now()
	s.mu.Lock()
	st.Running = false
	st.LastRun = &now
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
	s.mu.Unlock()
	return err
}

func (s *Scheduler) runDailyTick() error {
	_, err := s.accrual.RunDailyTick(context.Background())
	return err
}

func (s *Scheduler) runDailyShare() error {
	_, err := s.distribution.RunDailyProfitShare()
	return err
}

func (s *Scheduler) runLevelShare() error {
	_, err := s.distribution.RunLevelBasedProfitShare()
	return err
}

// runGameReset sweeps both game types. The color sweep failing does not
// block the number sweep.
func (s *Scheduler) runGameReset() error {
	var firstErr error
	if _, err := s.colorGame.ResetCompletedRooms(); err != nil {
		firstErr = fmt.Errorf("color rooms: %w", err)
	}
	if _, err := s.numberGame.ResetCompletedRooms(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("number rooms: %w", err)
	}
	return firstErr
}
