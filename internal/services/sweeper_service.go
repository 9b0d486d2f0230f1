package services

import (
	"context"
	"time"

	"goride/internal/config"
	"goride/internal/repositories/interfaces"

	"github.com/sirupsen/logrus"
)

// SweeperService is the Lazy Timeout Sweeper (§4.8). It runs both inline
// (first stage of every pipeline invocation) and on a periodic timer;
// both paths share SweepOnce so the two call sites can never disagree on
// thresholds.
type SweeperService struct {
	activeCalls interfaces.ActiveCallRepository
	cfg         *config.CampaignConfig
	logger      *logrus.Logger
}

func NewSweeperService(activeCalls interfaces.ActiveCallRepository, cfg *config.CampaignConfig, logger *logrus.Logger) *SweeperService {
	return &SweeperService{
		activeCalls: activeCalls,
		cfg:         cfg,
		logger:      logger,
	}
}

// SweepOnce implements bulkExpire(now) (§4.8).
func (s *SweeperService) SweepOnce(ctx context.Context) (int64, error) {
	expired, err := s.activeCalls.BulkExpire(ctx, interfaces.ExpireThresholds{
		Processed: s.cfg.MaxProcessedTime,
		Ringing:   s.cfg.MaxRingingTime,
		Ongoing:   s.cfg.MaxOngoingTime,
		Now:       time.Now(),
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.WithField("count", expired).Info("sweeper: expired stuck active-call rows")
	}
	return expired, nil
}

// SweepOneTimeCleanup runs the one-time cleanup variant (§4.8): tags
// failureReason=one_time_cleanup_timeout and tolerates rows lacking
// statusTimestamp by falling back to startTime.
func (s *SweeperService) SweepOneTimeCleanup(ctx context.Context) (int64, error) {
	return s.activeCalls.BulkExpire(ctx, interfaces.ExpireThresholds{
		Processed:      s.cfg.MaxProcessedTime,
		Ringing:        s.cfg.MaxRingingTime,
		Ongoing:        s.cfg.MaxOngoingTime,
		Now:            time.Now(),
		OneTimeCleanup: true,
	})
}

// RunPeriodic blocks, sweeping on CleanupInterval until ctx is canceled.
// Launched as a goroutine from main.
func (s *SweeperService) RunPeriodic(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.WithError(err).Error("sweeper: periodic sweep failed")
			}
		}
	}
}
