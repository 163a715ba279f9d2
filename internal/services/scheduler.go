package services

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/trackwell/issuetracker/internal/models"
	"github.com/trackwell/issuetracker/pkg/logger"
	"gorm.io/gorm"
)

const (
	jobSystemLogCleanup    = "system_log_cleanup"
	jobRefreshTokenCleanup = "refresh_token_cleanup"
)

// MaintenanceScheduler runs nightly housekeeping: pruning system logs past
// their retention and refresh tokens past expiry.
type MaintenanceScheduler struct {
	db         *gorm.DB
	systemLogs *SystemLogService
	auth       *AuthService
	cron       *cron.Cron
	instance   string
	now        func() time.Time
}

func NewMaintenanceScheduler(db *gorm.DB, systemLogs *SystemLogService, auth *AuthService) *MaintenanceScheduler {
	host, _ := os.Hostname()
	return &MaintenanceScheduler{
		db:         db,
		systemLogs: systemLogs,
		auth:       auth,
		instance:   host + ":" + uuid.NewString()[:8],
		now:        time.Now,
	}
}

func (s *MaintenanceScheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("30 3 * * *", func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info().Msg("[Maintenance] Scheduler started")
	return nil
}

func (s *MaintenanceScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce runs every job this instance can claim for today.
func (s *MaintenanceScheduler) RunOnce(ctx context.Context) {
	day := s.now().UTC().Format("2006-01-02")

	if s.claim(ctx, jobSystemLogCleanup, day) {
		n, err := s.systemLogs.CleanupOldLogs(ctx, s.systemLogs.GetRetentionDays())
		s.logResult(jobSystemLogCleanup, n, err)
	}
	if s.claim(ctx, jobRefreshTokenCleanup, day) {
		n, err := s.auth.CleanupRefreshTokens(ctx, s.now())
		s.logResult(jobRefreshTokenCleanup, n, err)
	}

	s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.SchedulerLock{})
}

// claim inserts the lock row for (job, key). Losing the unique-index race
// means another instance already ran the job.
func (s *MaintenanceScheduler) claim(ctx context.Context, job, key string) bool {
	now := s.now()
	lock := models.SchedulerLock{
		LockName:  job,
		LockKey:   key,
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(48 * time.Hour),
	}
	if err := s.db.WithContext(ctx).Create(&lock).Error; err != nil {
		logger.Debug().Str("job", job).Str("key", key).Err(err).Msg("[Maintenance] job already claimed")
		return false
	}
	return true
}

func (s *MaintenanceScheduler) logResult(job string, removed int64, err error) {
	if err != nil {
		logger.Error().Err(err).Str("job", job).Msg("[Maintenance] job failed")
		LogError("Maintenance", job, err.Error(), nil, "", "", nil)
		return
	}
	logger.Info().Str("job", job).Int64("removed", removed).Msg("[Maintenance] job finished")
}
