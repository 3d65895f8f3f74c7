package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "fiscalwatch/pkg/domain-errors"
)

type SchedulerSuite struct {
	suite.Suite
	ctx   context.Context
	sched *Scheduler
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	s.sched = New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) TestRegister() {
	s.Run("rejects duplicate job ids", func() {
		s.Require().NoError(s.sched.Register("collect", "collection", time.Hour, func(context.Context) error { return nil }))
		err := s.sched.Register("collect", "collection again", time.Hour, func(context.Context) error { return nil })
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects non-positive intervals", func() {
		err := s.sched.Register("bad", "bad", 0, func(context.Context) error { return nil })
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *SchedulerSuite) TestManualTrigger() {
	s.Run("unknown job id is a not-found error", func() {
		_, err := s.sched.TriggerManual(s.ctx, "nope")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("a busy job reports a skip, not an error", func() {
		release := make(chan struct{})
		running := make(chan struct{})
		s.Require().NoError(s.sched.Register("slow", "slow job", time.Hour, func(context.Context) error {
			close(running)
			<-release
			return nil
		}))

		first, err := s.sched.TriggerManual(s.ctx, "slow")
		s.Require().NoError(err)
		s.True(first.Started)
		<-running

		second, err := s.sched.TriggerManual(s.ctx, "slow")
		s.Require().NoError(err)
		s.False(second.Started)
		s.Equal("job is already running", second.Message)

		close(release)
	})

	s.Run("the job runs again once the previous run finished", func() {
		var runs atomic.Int32
		done := make(chan struct{}, 2)
		s.Require().NoError(s.sched.Register("quick", "quick job", time.Hour, func(context.Context) error {
			runs.Add(1)
			done <- struct{}{}
			return nil
		}))

		result, err := s.sched.TriggerManual(s.ctx, "quick")
		s.Require().NoError(err)
		s.True(result.Started)
		<-done

		s.Require().Eventually(func() bool {
			result, err := s.sched.TriggerManual(s.ctx, "quick")
			return err == nil && result.Started
		}, time.Second, 5*time.Millisecond)
		<-done
		s.Eventually(func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	})
}

func (s *SchedulerSuite) TestStartAndStatus() {
	s.Run("status before start reports stopped", func() {
		s.Require().NoError(s.sched.Register("collect", "collection", time.Hour, func(context.Context) error { return nil }))
		status := s.sched.Status()
		s.Equal("stopped", status.State)
		s.Require().Len(status.Jobs, 1)
		s.Equal("collect", status.Jobs[0].ID)
		s.True(status.Jobs[0].NextRun.IsZero())
	})

	s.Run("start runs each job immediately and schedules the next firing", func() {
		ran := make(chan struct{})
		s.Require().NoError(s.sched.Register("verify", "verification", time.Hour, func(context.Context) error {
			close(ran)
			return nil
		}))
		s.Require().NoError(s.sched.Start(s.ctx))
		defer s.sched.Stop()

		select {
		case <-ran:
		case <-time.After(time.Second):
			s.FailNow("startup run never fired")
		}

		status := s.sched.Status()
		s.Equal("running", status.State)
		for _, job := range status.Jobs {
			if job.ID == "verify" {
				s.False(job.NextRun.IsZero())
			}
		}
	})

	s.Run("stop is idempotent and flips the state", func() {
		sched := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
		s.Require().NoError(sched.Register("collect", "collection", time.Hour, func(context.Context) error { return nil }))
		s.Require().NoError(sched.Start(s.ctx))
		sched.Stop()
		sched.Stop()
		s.Equal("stopped", sched.Status().State)
	})
}

func (s *SchedulerSuite) TestRunsOutliveTheCallerContext() {
	s.Run("a manual trigger survives the request context being cancelled", func() {
		release := make(chan struct{})
		ctxErr := make(chan error, 1)
		s.Require().NoError(s.sched.Register("collect", "collection", time.Hour, func(ctx context.Context) error {
			<-release
			ctxErr <- ctx.Err()
			return nil
		}))

		reqCtx, cancel := context.WithCancel(s.ctx)
		result, err := s.sched.TriggerManual(reqCtx, "collect")
		s.Require().NoError(err)
		s.True(result.Started)

		// The handler writes its response and the request context dies
		// while the run is still in flight.
		cancel()
		close(release)

		select {
		case err := <-ctxErr:
			s.NoError(err, "the run must not inherit the request's cancellation")
		case <-time.After(time.Second):
			s.FailNow("job never finished")
		}
	})

	s.Run("shutdown stops future firings but not the in-flight run", func() {
		sched := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
		release := make(chan struct{})
		running := make(chan struct{})
		ctxErr := make(chan error, 1)
		s.Require().NoError(sched.Register("verify", "verification", time.Hour, func(ctx context.Context) error {
			close(running)
			<-release
			ctxErr <- ctx.Err()
			return nil
		}))

		startCtx, cancel := context.WithCancel(s.ctx)
		s.Require().NoError(sched.Start(startCtx))
		<-running

		cancel()
		sched.Stop()
		close(release)

		select {
		case err := <-ctxErr:
			s.NoError(err, "shutdown must leave the in-flight run untouched")
		case <-time.After(time.Second):
			s.FailNow("job never finished")
		}
	})
}

func (s *SchedulerSuite) TestJobFailureIsRecorded() {
	s.Require().NoError(s.sched.Register("flaky", "flaky job", time.Hour, func(context.Context) error {
		return dErrors.New(dErrors.CodeInternal, "boom")
	}))

	result, err := s.sched.TriggerManual(s.ctx, "flaky")
	s.Require().NoError(err)
	s.True(result.Started)

	s.Eventually(func() bool {
		for _, job := range s.sched.Status().Jobs {
			if job.ID == "flaky" {
				return job.LastError != "" && !job.Running
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
