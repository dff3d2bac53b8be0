package services

import (
	"context"
	"fmt"
	"time"

	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// revokedTokenRetention is how long revoked refresh tokens stay for forensics
const revokedTokenRetention = 7 * 24 * time.Hour

// jobTimeout bounds a single run of any job
const jobTimeout = 5 * time.Minute

// TokenPurger deletes dead refresh tokens
type TokenPurger interface {
	CleanupExpiredTokens(ctx context.Context, revokedRetention time.Duration) (int64, error)
}

// StatsReconciler recomputes denormalized provider counters
type StatsReconciler interface {
	ReconcileStats(ctx context.Context) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	cfg        config.CronConfig
	tokens     TokenPurger
	providers  StatsReconciler
	audit      *AuditService
	logger     *logrus.Logger
	jobsByName map[string]func()
}

// NewCronService creates a new CronService. Schedules use the six-field
// format with seconds.
func NewCronService(cfg config.CronConfig, tokens TokenPurger, providers StatsReconciler, audit *AuditService, logger *logrus.Logger) *CronService {
	s := &CronService{
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		tokens:    tokens,
		providers: providers,
		audit:     audit,
		logger:    logger,
	}
	s.jobsByName = map[string]func(){
		"purge_tokens":    s.purgeTokensJob,
		"reconcile_stats": s.reconcileStatsJob,
		"audit_cleanup":   s.auditCleanupJob,
	}
	return s
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	schedules := []struct {
		name, spec string
	}{
		{"purge_tokens", s.cfg.PurgeTokensSchedule},
		{"reconcile_stats", s.cfg.ReconcileStatsSchedule},
		{"audit_cleanup", s.cfg.AuditCleanupSchedule},
	}

	for _, j := range schedules {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.jobsByName[j.name]); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", j.name, err)
		}
		s.logger.WithFields(logrus.Fields{"job": j.name, "schedule": j.spec}).Info("Scheduled cron job")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cron service stopped")
}

// RunNow runs a job synchronously by name
func (s *CronService) RunNow(name string) error {
	job, ok := s.jobsByName[name]
	if !ok {
		return validation("job", "unknown job %q", name)
	}
	job()
	return nil
}

// JobStatus returns the scheduled entries
func (s *CronService) JobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}
	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}

func (s *CronService) purgeTokensJob() {
	s.run("purge_tokens", func(ctx context.Context) (int64, error) {
		return s.tokens.CleanupExpiredTokens(ctx, revokedTokenRetention)
	})
}

func (s *CronService) reconcileStatsJob() {
	s.run("reconcile_stats", s.providers.ReconcileStats)
}

func (s *CronService) auditCleanupJob() {
	s.run("audit_cleanup", func(ctx context.Context) (int64, error) {
		return s.audit.CleanupOldAuditLogs(ctx, s.cfg.AuditRetention)
	})
}

func (s *CronService) run(name string, job func(context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log := s.logger.WithField("job", name)
	start := time.Now()

	n, err := job(ctx)
	if err != nil {
		log.WithError(err).Error("Cron job failed")
		return
	}
	log.WithFields(logrus.Fields{
		"affected": n,
		"duration": time.Since(start).String(),
	}).Info("Cron job finished")
}
