package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/repository"
	"github.com/kalendasha/kalendasha/internal/service"
)

// Core — собранное ядро приложения. Внешние поверхности (бот, HTTP)
// подключаются поверх этих сервисов.
type Core struct {
	Students     *service.StudentService
	Templates    *service.TemplateService
	Lessons      *service.LessonService
	Materializer *service.MaterializerService
	Ledger       *service.LedgerService
	Families     *service.FamilyService
}

// NewCore собирает репозитории и сервисы поверх пула соединений
func NewCore(pool *pgxpool.Pool, clock service.Clock, logger *zap.Logger) *Core {
	studentRepo := repository.NewStudentRepository(pool, logger)
	templateRepo := repository.NewTemplateRepository(pool, logger)
	lessonRepo := repository.NewLessonRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)
	familyRepo := repository.NewFamilyRepository(pool, logger)

	return &Core{
		Students:     service.NewStudentService(studentRepo, lessonRepo, clock, logger),
		Templates:    service.NewTemplateService(templateRepo, studentRepo, clock, logger),
		Lessons:      service.NewLessonService(lessonRepo, studentRepo, paymentRepo, clock, logger),
		Materializer: service.NewMaterializerService(templateRepo, lessonRepo, studentRepo, clock, logger),
		Ledger:       service.NewLedgerService(paymentRepo, studentRepo, lessonRepo, clock, logger),
		Families:     service.NewFamilyService(familyRepo, studentRepo, clock, logger),
	}
}
