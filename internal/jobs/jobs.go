package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

type OrphanCounter interface {
	CountOrphanSignOffs(ctx context.Context) (int64, error)
}

type WorkspaceEvicter interface {
	Evict(ttl time.Duration) int
}

type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic maintenance tasks.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewScheduler(logger *zap.Logger, metrics *metrics.MetricsCollector) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	l := logger.With(zap.String("component", "jobs"))
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l}))),
		ctx:     ctx,
		cancel:  cancel,
		logger:  l,
		metrics: metrics,
	}
}

// Add registers fn under spec. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	if spec == "" {
		s.logger.Info("Job disabled", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", name, err)
	}
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.Since("job_"+name, start)
	if err != nil {
		s.metrics.IncrementCounter("jobs", map[string]string{"job": name, "result": "error"})
		s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.metrics.IncrementCounter("jobs", map[string]string{"job": name, "result": "ok"})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// OrphanAudit counts sign-offs whose document is gone. Nothing is deleted.
func OrphanAudit(counter OrphanCounter, logger *zap.Logger, metrics *metrics.MetricsCollector) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := counter.CountOrphanSignOffs(ctx)
		if err != nil {
			return err
		}
		metrics.SetCounter("signoffs.orphaned", nil, n)
		if n > 0 {
			logger.Warn("Orphaned sign-offs found", zap.Int64("count", n))
		}
		return nil
	}
}

func WorkspaceSweep(registry WorkspaceEvicter, ttl time.Duration, logger *zap.Logger) func(context.Context) error {
	return func(context.Context) error {
		if n := registry.Evict(ttl); n > 0 {
			logger.Info("Idle workspaces evicted", zap.Int("count", n))
		}
		return nil
	}
}

func SessionCleanup(cleaner SessionCleaner, logger *zap.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := cleaner.CleanupExpiredSessions(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("Expired sessions removed", zap.Int64("count", n))
		}
		return nil
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
