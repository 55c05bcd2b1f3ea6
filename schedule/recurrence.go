// Package schedule содержит чистую календарную арифметику планировщика:
// вычисление ближайшего вхождения еженедельного шаблона, разбор дедлайна
// анонса и правило склейки почти-одинаковых вхождений.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownDayOfWeek = errors.New("unknown day of week")
	ErrInvalidTimeOfDay = errors.New("time of day must match HH:MM (24h)")
	ErrInvalidDate      = errors.New("resulting date is not constructible")
)

// timeOfDayRe принимает строго 24-часовой формат с ведущим нулём.
var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// weekdays - написание дней недели в шаблонах. Нумерация совпадает с
// time.Weekday: Monday=1 … Saturday=6, Sunday=0.
var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseTimeOfDay разбирает строку вида "19:30" в часы и минуты.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if !timeOfDayRe.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	return hour, minute, nil
}

// ParseDayOfWeek разбирает символьное имя дня недели (без учёта регистра).
func ParseDayOfWeek(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDayOfWeek, s)
	}
	return wd, nil
}

// NextOccurrence возвращает ближайший строго будущий момент, в который
// шаблон (день недели + время) выпадает относительно now. Вся арифметика
// ведётся в loc. Если целевой день - сегодня, но время уже прошло,
// вхождение переносится на неделю вперёд.
func NextOccurrence(dayOfWeek, timeOfDay string, now time.Time, loc *time.Location) (time.Time, error) {
	wd, err := ParseDayOfWeek(dayOfWeek)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	delta := (int(wd) - int(local.Weekday()) + 7) % 7

	candidate := time.Date(local.Year(), local.Month(), local.Day()+delta, hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	// time.Date нормализует переполнения, поэтому ошибка конструирования
	// проявляется только как уход даты за пределы допустимого диапазона.
	if candidate.Year() < local.Year() || candidate.Year() > local.Year()+1 {
		return time.Time{}, fmt.Errorf("%w: %s %s from %s", ErrInvalidDate, dayOfWeek, timeOfDay, now)
	}
	return candidate, nil
}

// SameOccurrence сообщает, считаются ли два момента одним и тем же
// вхождением шаблона. Допуск в один час поглощает дрожание таймера и
// артефакты перевода часов; менять его нельзя - более узкий допуск
// плодит дубли вокруг перехода на летнее время, более широкий глушит
// событие соседней недели.
func SameOccurrence(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < time.Hour
}
