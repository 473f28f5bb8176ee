package service

import "time"

// Clock отдаёт текущее время. Все проверки "урок уже закончился" и
// "новая дата в будущем" идут через него, чтобы в тестах время было
// детерминированным.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock возвращает часы на основе time.Now
func SystemClock() Clock { return systemClock{} }
