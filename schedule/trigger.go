package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var ErrInvalidDeadline = errors.New("invalid announce deadline expression")

// deadlineRe принимает две формы смещения:
//
//	-<N>d HH:MM - за N дней до вхождения, в указанное время;
//	-<N>h       - ровно за N часов до вхождения.
var deadlineRe = regexp.MustCompile(`^-(\d+)([dh])(?: (([01]\d|2[0-3]):[0-5]\d))?$`)

// Deadline - разобранное смещение дедлайна анонса.
type Deadline struct {
	Days      int
	Hours     int
	TimeOfDay string // заполняется только для дневной формы
}

// ParseDeadline разбирает выражение дедлайна. Дневная форма требует
// времени суток, часовая - запрещает его.
func ParseDeadline(expr string) (Deadline, error) {
	m := deadlineRe.FindStringSubmatch(expr)
	if m == nil {
		return Deadline{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, expr)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Deadline{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, expr)
	}
	switch m[2] {
	case "d":
		if m[3] == "" {
			return Deadline{}, fmt.Errorf("%w: day offset requires time of day: %q", ErrInvalidDeadline, expr)
		}
		return Deadline{Days: n, TimeOfDay: m[3]}, nil
	case "h":
		if m[3] != "" {
			return Deadline{}, fmt.Errorf("%w: hour offset takes no time of day: %q", ErrInvalidDeadline, expr)
		}
		return Deadline{Hours: n}, nil
	}
	return Deadline{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, expr)
}

// TriggerAt возвращает момент, начиная с которого вхождение occurrence
// пора материализовать в событие.
func (d Deadline) TriggerAt(occurrence time.Time, loc *time.Location) time.Time {
	if d.TimeOfDay != "" {
		local := occurrence.In(loc)
		hour, minute, _ := ParseTimeOfDay(d.TimeOfDay)
		return time.Date(local.Year(), local.Month(), local.Day()-d.Days, hour, minute, 0, 0, loc)
	}
	return occurrence.Add(-time.Duration(d.Hours) * time.Hour)
}

// ShouldTrigger сообщает, пересекло ли now точку срабатывания дедлайна
// для данного вхождения.
func ShouldTrigger(d Deadline, occurrence, now time.Time, loc *time.Location) bool {
	return !now.Before(d.TriggerAt(occurrence, loc))
}
