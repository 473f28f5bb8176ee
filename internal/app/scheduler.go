package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/service"
)

// Scheduler управляет фоновыми задачами: периодической очисткой
// прошедших уроков и ежедневной развёрткой шаблона недели.
type Scheduler struct {
	lessons      *service.LessonService
	materializer *service.MaterializerService
	sweepEvery   time.Duration
	horizonDays  int
	logger       *zap.Logger
	stopChan     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	lessons *service.LessonService,
	materializer *service.MaterializerService,
	sweepEvery time.Duration,
	horizonDays int,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		lessons:      lessons,
		materializer: materializer,
		sweepEvery:   sweepEvery,
		horizonDays:  horizonDays,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("sweep_interval", s.sweepEvery),
		zap.Int("materialize_horizon_days", s.horizonDays))

	go s.runSweepTask(ctx)
	go s.runMaterializeTask(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

// runSweepTask периодически завершает прошедшие уроки и списывает оплату
func (s *Scheduler) runSweepTask(ctx context.Context) {
	// Первый запуск сразу при старте: за время простоя уроки накопились
	s.sweep(ctx)

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Lesson sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Lesson sweep task cancelled")
			return
		}
	}
}

// runMaterializeTask раз в сутки разворачивает шаблон недели вперёд
func (s *Scheduler) runMaterializeTask(ctx context.Context) {
	s.materialize(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.materialize(ctx)
		case <-s.stopChan:
			s.logger.Info("Template materialization task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Template materialization task cancelled")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	transitions, err := s.lessons.RunSweep(ctx)
	if err != nil {
		s.logger.Error("Lesson sweep failed", zap.Error(err))
		return
	}
	if len(transitions) > 0 {
		s.logger.Info("Lessons completed by sweep", zap.Int("count", len(transitions)))
	}
}

func (s *Scheduler) materialize(ctx context.Context) {
	horizonEnd := time.Now().AddDate(0, 0, s.horizonDays)

	report, err := s.materializer.ApplyTemplates(ctx, horizonEnd)
	if err != nil {
		s.logger.Error("Template materialization failed", zap.Error(err))
		return
	}

	s.logger.Info("Template materialization completed",
		zap.Int("created", report.Created),
		zap.Int("skipped_missing_student", report.SkippedMissingStudent))
}
