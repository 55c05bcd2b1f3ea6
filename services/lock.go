package services

import "sync"

// EventLocker сериализует многошаговые операции над одним событием
// (финализация, её отмена, отметки оплаты). Захват неблокирующий:
// занятый идентификатор - штатный исход, а не ошибка.
//
// Блокировка консультативная и живёт только внутри процесса; движок
// запускается в одном экземпляре, межпроцессные гарантии не нужны.
type EventLocker interface {
	TryAcquire(eventID int) bool
	Release(eventID int)
}

// EventLock - реализация EventLocker на мьютексе и множестве занятых
// идентификаторов.
type EventLock struct {
	mu   sync.Mutex
	held map[int]struct{}
}

func NewEventLock() *EventLock {
	return &EventLock{held: make(map[int]struct{})}
}

func (l *EventLock) TryAcquire(eventID int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[eventID]; busy {
		return false
	}
	l.held[eventID] = struct{}{}
	return true
}

func (l *EventLock) Release(eventID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, eventID)
}
