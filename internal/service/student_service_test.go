package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalendasha/kalendasha/internal/model"
)

func TestCreateStudentValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.students.Create(ctx, CreateStudentRequest{Name: "   "})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = env.students.Create(ctx, CreateStudentRequest{
		Name:        "Маша",
		LessonPrice: decimal.NewFromInt(-100),
	})
	assert.ErrorIs(t, err, model.ErrValidation)

	s, err := env.students.Create(ctx, CreateStudentRequest{
		Name:        "  Маша  ",
		ParentName:  " Иванова ",
		LessonPrice: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "Маша", s.Name)
	assert.Equal(t, "Иванова", s.ParentName)
	assert.NotZero(t, s.ID)
}

func TestUpdateStudentPriceAffectsOnlyFutureCharges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.addStudent(t, "Маша", "", 1000)
	env.addLesson(t, student.ID, env.clock.Now().Add(-2*time.Hour), model.LessonTypeRegular)

	_, err := env.lessons.RunSweep(ctx)
	require.NoError(t, err)

	price := decimal.NewFromInt(1500)
	_, err = env.students.Update(ctx, student.ID, UpdateStudentRequest{LessonPrice: &price})
	require.NoError(t, err)

	// старое списание не пересчитано
	assert.True(t, env.studentBalance(t, student.ID).Equal(decimal.NewFromInt(-1000)))

	env.addLesson(t, student.ID, env.clock.Now().Add(-4*time.Hour), model.LessonTypeRegular)
	_, err = env.lessons.RunSweep(ctx)
	require.NoError(t, err)

	assert.True(t, env.studentBalance(t, student.ID).Equal(decimal.NewFromInt(-2500)))
}

func TestDeleteStudentCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.addStudent(t, "Маша", "", 1000)
	keep := env.addStudent(t, "Петя", "", 500)

	mondayTemplate(t, env, student.ID)
	env.addLesson(t, student.ID, env.clock.Now().Add(-2*time.Hour), model.LessonTypeRegular)
	env.addLesson(t, keep.ID, env.clock.Now().Add(-3*time.Hour), model.LessonTypeRegular)

	_, err := env.lessons.RunSweep(ctx)
	require.NoError(t, err)

	require.NoError(t, env.students.Delete(ctx, student.ID))

	_, err = env.students.Get(ctx, student.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	templates, err := env.templates.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, templates)

	assert.Empty(t, env.studentPayments(t, student.ID))

	// чужие данные не затронуты
	assert.Len(t, env.studentPayments(t, keep.ID), 1)

	err = env.students.Delete(ctx, student.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStudentWidget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	student := env.addStudent(t, "Маша", "", 1000)
	mondayTemplate(t, env, student.ID)

	horizonEnd := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := env.materializer.ApplyTemplates(ctx, horizonEnd)
	require.NoError(t, err)

	// понедельники января: 1, 8, 15, 22, 29. Первый проводится, второй отменяется.
	env.clock.Set(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	_, err = env.lessons.RunSweep(ctx)
	require.NoError(t, err)

	lessons, err := env.db.Lessons().List(ctx, nil,
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	require.NoError(t, env.lessons.Cancel(ctx, lessons[0].ID))

	w, err := env.students.Widget(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, w.CompletedTotal)
	assert.Equal(t, 1, w.CancelledTotal)
	assert.Equal(t, 3, w.PlannedThisMonth)
}
