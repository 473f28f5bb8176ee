package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kalendasha/kalendasha/internal/model"
)

// memDB — хранилище в памяти для тестов сервисов. Повторяет семантику
// pgx-репозиториев: условный захват урока, уникальность
// (student_id, original_start), append-only журнал. Стор-интерфейсы
// реализуются обёртками поверх общих данных.
type memDB struct {
	mu sync.Mutex

	students      map[int64]*model.Student
	nextStudentID int64

	templates      map[int64]*model.LessonTemplate
	nextTemplateID int64

	lessons  map[uuid.UUID]*model.Lesson
	payments []*model.Payment
	families map[string]*model.FamilyBalance
}

func newMemDB() *memDB {
	return &memDB{
		students:  map[int64]*model.Student{},
		templates: map[int64]*model.LessonTemplate{},
		lessons:   map[uuid.UUID]*model.Lesson{},
		families:  map[string]*model.FamilyBalance{},
	}
}

func (db *memDB) Students() StudentStore   { return &memStudents{db} }
func (db *memDB) Templates() TemplateStore { return &memTemplates{db} }
func (db *memDB) Lessons() LessonStore     { return &memLessons{db} }
func (db *memDB) Payments() PaymentStore   { return &memPayments{db} }
func (db *memDB) Families() FamilyStore    { return &memFamilies{db} }

func (db *memDB) appendPayment(p *model.Payment) {
	cp := *p
	cp.CreatedAt = time.Now()
	db.payments = append(db.payments, &cp)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// --- StudentStore ---

type memStudents struct{ db *memDB }

func (m *memStudents) Create(ctx context.Context, s *model.Student) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.nextStudentID++
	s.ID = m.db.nextStudentID
	s.CreatedAt = time.Now()
	cp := *s
	m.db.students[s.ID] = &cp
	return nil
}

func (m *memStudents) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	s, ok := m.db.students[id]
	if !ok {
		return nil, fmt.Errorf("student %d: %w", id, model.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *memStudents) List(ctx context.Context) ([]*model.Student, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Student
	for _, s := range m.db.students {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStudents) ListByParentName(ctx context.Context, parentName string) ([]*model.Student, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Student
	for _, s := range m.db.students {
		if s.ParentName == parentName {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStudents) Update(ctx context.Context, s *model.Student) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.students[s.ID]; !ok {
		return fmt.Errorf("student %d: %w", s.ID, model.ErrNotFound)
	}
	cp := *s
	m.db.students[s.ID] = &cp
	return nil
}

func (m *memStudents) DeleteCascade(ctx context.Context, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.students[id]; !ok {
		return fmt.Errorf("student %d: %w", id, model.ErrNotFound)
	}
	var kept []*model.Payment
	for _, p := range m.db.payments {
		if p.StudentID == nil || *p.StudentID != id {
			kept = append(kept, p)
		}
	}
	m.db.payments = kept
	for lid, l := range m.db.lessons {
		if l.StudentID == id {
			delete(m.db.lessons, lid)
		}
	}
	for tid, t := range m.db.templates {
		if t.StudentID == id {
			delete(m.db.templates, tid)
		}
	}
	delete(m.db.students, id)
	return nil
}

// --- TemplateStore ---

type memTemplates struct{ db *memDB }

func (m *memTemplates) Create(ctx context.Context, t *model.LessonTemplate) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.nextTemplateID++
	t.ID = m.db.nextTemplateID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.db.templates[t.ID] = &cp
	return nil
}

func (m *memTemplates) GetByID(ctx context.Context, id int64) (*model.LessonTemplate, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %d: %w", id, model.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memTemplates) List(ctx context.Context) ([]*model.LessonTemplate, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.LessonTemplate
	for _, t := range m.db.templates {
		cp := *t
		out = append(out, &cp)
	}
	mondayFirst := func(w time.Weekday) int { return (int(w) + 6) % 7 }
	sort.Slice(out, func(i, j int) bool {
		if mondayFirst(out[i].Weekday) != mondayFirst(out[j].Weekday) {
			return mondayFirst(out[i].Weekday) < mondayFirst(out[j].Weekday)
		}
		if out[i].StartHour != out[j].StartHour {
			return out[i].StartHour < out[j].StartHour
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

func (m *memTemplates) Exists(ctx context.Context, studentID int64, weekday time.Weekday, hour, minute int) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, t := range m.db.templates {
		if t.StudentID == studentID && t.Weekday == weekday &&
			t.StartHour == hour && t.StartMinute == minute {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTemplates) Update(ctx context.Context, t *model.LessonTemplate) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.templates[t.ID]; !ok {
		return fmt.Errorf("template %d: %w", t.ID, model.ErrNotFound)
	}
	t.UpdatedAt = time.Now()
	cp := *t
	m.db.templates[t.ID] = &cp
	return nil
}

func (m *memTemplates) DeleteWithFutureLessons(ctx context.Context, id int64, now time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.templates[id]; !ok {
		return fmt.Errorf("template %d: %w", id, model.ErrNotFound)
	}
	for lid, l := range m.db.lessons {
		if l.TemplateID != nil && *l.TemplateID == id &&
			l.Status == model.LessonStatusScheduled &&
			l.StartTime.After(now) {
			delete(m.db.lessons, lid)
		}
	}
	delete(m.db.templates, id)
	return nil
}

// --- LessonStore ---

type memLessons struct{ db *memDB }

func (m *memLessons) Create(ctx context.Context, l *model.Lesson) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.lessons {
		if existing.StudentID == l.StudentID && existing.OriginalStart.Equal(l.OriginalStart) {
			return fmt.Errorf("lesson exists: %w", model.ErrConflict)
		}
	}
	l.CreatedAt = time.Now()
	cp := *l
	m.db.lessons[l.ID] = &cp
	return nil
}

func (m *memLessons) GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l, ok := m.db.lessons[id]
	if !ok {
		return nil, fmt.Errorf("lesson %s: %w", id, model.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (m *memLessons) List(ctx context.Context, studentID *int64, from, to time.Time) ([]*model.Lesson, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Lesson
	for _, l := range m.db.lessons {
		if l.StartTime.Before(from) || !l.StartTime.Before(to) {
			continue
		}
		if studentID != nil && l.StudentID != *studentID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memLessons) ListDue(ctx context.Context, now time.Time) ([]*model.Lesson, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Lesson
	for _, l := range m.db.lessons {
		if l.Status != model.LessonStatusScheduled {
			continue
		}
		if l.EndTime().After(now) {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memLessons) ExistsByOriginalStart(ctx context.Context, studentID int64, originalStart time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, l := range m.db.lessons {
		if l.StudentID == studentID && l.OriginalStart.Equal(originalStart) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLessons) CompleteWithCharge(ctx context.Context, id uuid.UUID, charge *model.Payment) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l, ok := m.db.lessons[id]
	if !ok || l.Status != model.LessonStatusScheduled {
		return false, nil
	}
	l.Status = model.LessonStatusCompleted
	l.IsPaid = charge != nil
	if charge != nil {
		m.db.appendPayment(charge)
	}
	return true, nil
}

func (m *memLessons) CancelWithRefund(ctx context.Context, id uuid.UUID, refund *model.Payment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l, ok := m.db.lessons[id]
	if !ok || l.Status == model.LessonStatusCancelled {
		return fmt.Errorf("cancel lesson %s: %w", id, model.ErrInvalidState)
	}
	l.Status = model.LessonStatusCancelled
	l.IsPaid = false
	if refund != nil {
		m.db.appendPayment(refund)
	}
	return nil
}

func (m *memLessons) Restore(ctx context.Context, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	l, ok := m.db.lessons[id]
	if !ok || l.Status != model.LessonStatusCancelled {
		return fmt.Errorf("restore lesson %s: %w", id, model.ErrInvalidState)
	}
	l.Status = model.LessonStatusScheduled
	return nil
}

func (m *memLessons) Update(ctx context.Context, l *model.Lesson) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.store(l)
}

func (m *memLessons) RescheduleWithRefund(ctx context.Context, l *model.Lesson, refund *model.Payment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.store(l); err != nil {
		return err
	}
	if refund != nil {
		m.db.appendPayment(refund)
	}
	return nil
}

func (m *memLessons) store(l *model.Lesson) error {
	existing, ok := m.db.lessons[l.ID]
	if !ok {
		return fmt.Errorf("lesson %s: %w", l.ID, model.ErrNotFound)
	}
	existing.StudentID = l.StudentID
	existing.StartTime = l.StartTime
	existing.DurationMinutes = l.DurationMinutes
	existing.Subject = l.Subject
	existing.Status = l.Status
	existing.IsMoved = l.IsMoved
	existing.MovedReason = l.MovedReason
	existing.IsPaid = l.IsPaid
	return nil
}

func (m *memLessons) Delete(ctx context.Context, id uuid.UUID) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.lessons[id]; !ok {
		return fmt.Errorf("lesson %s: %w", id, model.ErrNotFound)
	}
	delete(m.db.lessons, id)
	return nil
}

func (m *memLessons) CountCompleted(ctx context.Context, studentID int64) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	count := 0
	for _, l := range m.db.lessons {
		if l.StudentID == studentID && l.Status == model.LessonStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (m *memLessons) CountUnpaid(ctx context.Context, studentID int64) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	count := 0
	for _, l := range m.db.lessons {
		if l.StudentID == studentID &&
			l.Status == model.LessonStatusCompleted &&
			!l.IsPaid &&
			l.LessonType != model.LessonTypeTrial {
			count++
		}
	}
	return count, nil
}

func (m *memLessons) WidgetStats(ctx context.Context, studentID int64, year int, month time.Month) (completed, cancelled, plannedThisMonth int, err error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, l := range m.db.lessons {
		if l.StudentID != studentID {
			continue
		}
		switch l.Status {
		case model.LessonStatusCompleted:
			completed++
		case model.LessonStatusCancelled:
			cancelled++
		case model.LessonStatusScheduled:
			if l.FromTemplate && l.StartTime.Year() == year && l.StartTime.Month() == month {
				plannedThisMonth++
			}
		}
	}
	return completed, cancelled, plannedThisMonth, nil
}

// --- PaymentStore ---

type memPayments struct{ db *memDB }

func (m *memPayments) Create(ctx context.Context, p *model.Payment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.appendPayment(p)
	return nil
}

func (m *memPayments) ListByStudent(ctx context.Context, studentID int64, limit int) ([]*model.Payment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Payment
	for i := len(m.db.payments) - 1; i >= 0; i-- {
		p := m.db.payments[i]
		if p.StudentID != nil && *p.StudentID == studentID {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memPayments) StudentTotals(ctx context.Context, studentID int64) (balance, totalPaid, totalSpent decimal.Decimal, err error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	balance, totalPaid, totalSpent = decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range m.db.payments {
		if p.StudentID == nil || *p.StudentID != studentID {
			continue
		}
		balance = balance.Add(p.Amount)
		if p.Amount.IsPositive() {
			totalPaid = totalPaid.Add(p.Amount)
		} else {
			totalSpent = totalSpent.Add(p.Amount.Neg())
		}
	}
	return balance, totalPaid, totalSpent, nil
}

func (m *memPayments) LastUnreversedCharge(ctx context.Context, lessonID uuid.UUID) (*model.Payment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	outstanding := 0
	var last *model.Payment
	for _, p := range m.db.payments {
		if p.LessonID == nil || *p.LessonID != lessonID {
			continue
		}
		switch p.Type {
		case model.PaymentTypeExpense:
			outstanding++
			last = p
		case model.PaymentTypeRefund:
			outstanding--
		}
	}
	if outstanding <= 0 || last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (m *memPayments) Overview(ctx context.Context) (*model.FinancialOverview, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	o := &model.FinancialOverview{
		TotalPrepaid: decimal.Zero,
		TotalDebt:    decimal.Zero,
		TotalBalance: decimal.Zero,
	}
	byStudent := map[int64]decimal.Decimal{}
	for _, p := range m.db.payments {
		if p.StudentID == nil {
			continue
		}
		o.TotalBalance = o.TotalBalance.Add(p.Amount)
		byStudent[*p.StudentID] = byStudent[*p.StudentID].Add(p.Amount)
	}
	if o.TotalBalance.IsPositive() {
		o.TotalPrepaid = o.TotalBalance
	} else {
		o.TotalDebt = o.TotalBalance.Neg()
	}
	for _, b := range byStudent {
		if b.IsPositive() {
			o.StudentsWithPositiveBalance++
		} else if b.IsNegative() {
			o.StudentsWithNegativeBalance++
		}
	}
	return o, nil
}

func (m *memPayments) DeleteByStudent(ctx context.Context, studentID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var kept []*model.Payment
	for _, p := range m.db.payments {
		if p.StudentID == nil || *p.StudentID != studentID {
			kept = append(kept, p)
		}
	}
	m.db.payments = kept
	return nil
}

// --- FamilyStore ---

type memFamilies struct{ db *memDB }

func (m *memFamilies) ListFamilies(ctx context.Context) ([]*model.Family, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	byParent := map[string]*model.Family{}
	for _, s := range m.db.students {
		if s.ParentName == "" {
			continue
		}
		f, ok := byParent[s.ParentName]
		if !ok {
			f = &model.Family{ParentName: s.ParentName}
			byParent[s.ParentName] = f
		}
		cp := *s
		f.Children = append(f.Children, &cp)
	}
	var out []*model.Family
	for _, f := range byParent {
		if len(f.Children) >= model.MinFamilySize {
			sort.Slice(f.Children, func(i, j int) bool { return f.Children[i].Name < f.Children[j].Name })
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParentName < out[j].ParentName })
	return out, nil
}

func (m *memFamilies) GetBalance(ctx context.Context, parentName string) (*model.FamilyBalance, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	b, ok := m.db.families[parentName]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memFamilies) AddPayment(ctx context.Context, parentName string, p *model.Payment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.appendPayment(p)
	b, ok := m.db.families[parentName]
	if !ok {
		b = &model.FamilyBalance{
			ParentName: parentName,
			Balance:    decimal.Zero,
			TotalPaid:  decimal.Zero,
			TotalSpent: decimal.Zero,
			CreatedAt:  time.Now(),
		}
		m.db.families[parentName] = b
	}
	b.Balance = b.Balance.Add(p.Amount)
	b.TotalPaid = b.TotalPaid.Add(p.Amount)
	return nil
}
