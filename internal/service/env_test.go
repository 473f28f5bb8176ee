package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalendasha/kalendasha/internal/model"
)

// testEnv — полный набор сервисов поверх хранилища в памяти
type testEnv struct {
	db    *memDB
	clock *fakeClock

	students     *StudentService
	templates    *TemplateService
	lessons      *LessonService
	materializer *MaterializerService
	ledger       *LedgerService
	families     *FamilyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()

	return &testEnv{
		db:           db,
		clock:        clock,
		students:     NewStudentService(db.Students(), db.Lessons(), clock, logger),
		templates:    NewTemplateService(db.Templates(), db.Students(), clock, logger),
		lessons:      NewLessonService(db.Lessons(), db.Students(), db.Payments(), clock, logger),
		materializer: NewMaterializerService(db.Templates(), db.Lessons(), db.Students(), clock, logger),
		ledger:       NewLedgerService(db.Payments(), db.Students(), db.Lessons(), clock, logger),
		families:     NewFamilyService(db.Families(), db.Students(), clock, logger),
	}
}

func (e *testEnv) addStudent(t *testing.T, name, parentName string, price int64) *model.Student {
	t.Helper()

	s, err := e.students.Create(context.Background(), CreateStudentRequest{
		Name:        name,
		ParentName:  parentName,
		LessonPrice: decimal.NewFromInt(price),
	})
	require.NoError(t, err)
	return s
}

func (e *testEnv) addLesson(t *testing.T, studentID int64, start time.Time, lessonType model.LessonType) *model.Lesson {
	t.Helper()

	l, err := e.lessons.Create(context.Background(), CreateLessonRequest{
		StudentID:  studentID,
		StartTime:  start,
		Subject:    "математика",
		LessonType: lessonType,
	})
	require.NoError(t, err)
	return l
}

func (e *testEnv) studentBalance(t *testing.T, studentID int64) decimal.Decimal {
	t.Helper()

	balance, _, _, err := e.db.Payments().StudentTotals(context.Background(), studentID)
	require.NoError(t, err)
	return balance
}

func (e *testEnv) studentPayments(t *testing.T, studentID int64) []*model.Payment {
	t.Helper()

	payments, err := e.db.Payments().ListByStudent(context.Background(), studentID, 0)
	require.NoError(t, err)
	return payments
}
