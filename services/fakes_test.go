package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/Dosada05/court-booking-bot/repositories"
	"github.com/Dosada05/court-booking-bot/schedule"
)

// In-memory фейки репозиториев и транспорта для тестов сервисов.
// Повторяют контракты postgres-реализаций, включая ошибки "не найдено"
// и поведение при нулевом числе затронутых строк.

type nopTx struct{}

func (nopTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type failTx struct{ err error }

func (t failTx) WithinTx(context.Context, func(exec repositories.SQLExecutor) error) error {
	return t.err
}

type fakeEventRepo struct {
	mu     sync.Mutex
	nextID int
	events map[int]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]*models.Event)}
}

func (r *fakeEventRepo) Create(_ context.Context, e *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	stored := *e
	r.events[e.ID] = &stored
	return nil
}

func (r *fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEventRepo) FindByMessageID(_ context.Context, messageID int) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.MessageID != nil && *e.MessageID == messageID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, repositories.ErrEventNotFound
}

func (r *fakeEventRepo) FindNearbyByScaffold(_ context.Context, scaffoldID int, instant time.Time, window time.Duration) ([]models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nearby := make([]models.Event, 0)
	for _, e := range r.events {
		if e.ScaffoldID == nil || *e.ScaffoldID != scaffoldID || e.DeletedAt != nil {
			continue
		}
		if e.StartsAt.After(instant.Add(-window)) && e.StartsAt.Before(instant.Add(window)) {
			nearby = append(nearby, *e)
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].StartsAt.Before(nearby[j].StartsAt) })
	return nearby, nil
}

func (r *fakeEventRepo) ListUpcoming(_ context.Context, from time.Time) ([]models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upcoming := make([]models.Event, 0)
	for _, e := range r.events {
		if e.DeletedAt == nil && !e.StartsAt.Before(from) {
			upcoming = append(upcoming, *e)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartsAt.Before(upcoming[j].StartsAt) })
	return upcoming, nil
}

func (r *fakeEventRepo) SetStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.EventStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.Status = status
	return nil
}

func (r *fakeEventRepo) SetMessageID(_ context.Context, id int, messageID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.MessageID = messageID
	return nil
}

func (r *fakeEventRepo) SetCourts(_ context.Context, id, courts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.Courts = courts
	return nil
}

func (r *fakeEventRepo) SetOwner(_ context.Context, id int, ownerID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.OwnerID = ownerID
	return nil
}

func (r *fakeEventRepo) SoftDelete(_ context.Context, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.DeletedAt != nil {
		return repositories.ErrEventNotFound
	}
	e.DeletedAt = &at
	return nil
}

func (r *fakeEventRepo) Restore(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.DeletedAt = nil
	return nil
}

type fakeParticipantRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]*models.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{byID: make(map[int]*models.Participant)}
}

func (r *fakeParticipantRepo) Create(_ context.Context, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.TelegramID != nil {
		for _, existing := range r.byID {
			if existing.TelegramID != nil && *existing.TelegramID == *p.TelegramID {
				return repositories.ErrParticipantIDConflict
			}
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	stored := *p
	r.byID[p.ID] = &stored
	return nil
}

func (r *fakeParticipantRepo) GetByID(_ context.Context, id int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipantRepo) FindByTelegramID(_ context.Context, telegramID int64) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.TelegramID != nil && *p.TelegramID == telegramID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) FindByUsername(_ context.Context, username string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Username != nil && *p.Username == username {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

type membershipKey struct {
	eventID       int
	participantID int
}

type fakeMembershipRepo struct {
	mu           sync.Mutex
	participants *fakeParticipantRepo
	order        []membershipKey
	byKey        map[membershipKey]*models.Membership
}

func newFakeMembershipRepo(participants *fakeParticipantRepo) *fakeMembershipRepo {
	return &fakeMembershipRepo{
		participants: participants,
		byKey:        make(map[membershipKey]*models.Membership),
	}
}

func (r *fakeMembershipRepo) Create(_ context.Context, m *models.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := membershipKey{m.EventID, m.ParticipantID}
	m.CreatedAt = time.Now()
	stored := *m
	r.byKey[key] = &stored
	r.order = append(r.order, key)
	return nil
}

func (r *fakeMembershipRepo) FindByEventAndParticipant(_ context.Context, eventID, participantID int) (*models.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byKey[membershipKey{eventID, participantID}]
	if !ok {
		return nil, repositories.ErrMembershipNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMembershipRepo) GetEventParticipants(_ context.Context, eventID int) ([]models.EventParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]models.EventParticipant, 0)
	for _, key := range r.order {
		if key.eventID != eventID {
			continue
		}
		m, ok := r.byKey[key]
		if !ok {
			continue
		}
		p, ok := r.participants.byID[key.participantID]
		if !ok {
			continue
		}
		result = append(result, models.EventParticipant{
			Participant:    *p,
			Participations: m.Participations,
		})
	}
	return result, nil
}

func (r *fakeMembershipRepo) IncrementParticipations(_ context.Context, eventID, participantID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byKey[membershipKey{eventID, participantID}]
	if !ok {
		return repositories.ErrMembershipNotFound
	}
	m.Participations++
	return nil
}

func (r *fakeMembershipRepo) DecrementOrDelete(ctx context.Context, eventID, participantID int) error {
	r.mu.Lock()
	m, ok := r.byKey[membershipKey{eventID, participantID}]
	if ok && m.Participations > 1 {
		m.Participations--
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.Delete(ctx, eventID, participantID)
}

func (r *fakeMembershipRepo) Delete(_ context.Context, eventID, participantID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := membershipKey{eventID, participantID}
	if _, ok := r.byKey[key]; !ok {
		return repositories.ErrMembershipNotFound
	}
	delete(r.byKey, key)
	return nil
}

type fakePaymentRepo struct {
	mu           sync.Mutex
	participants *fakeParticipantRepo
	nextID       int
	byID         map[int]*models.Payment
}

func newFakePaymentRepo(participants *fakeParticipantRepo) *fakePaymentRepo {
	return &fakePaymentRepo{
		participants: participants,
		byID:         make(map[int]*models.Payment),
	}
}

func (r *fakePaymentRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, payments []*models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range payments {
		for _, existing := range r.byID {
			if existing.EventID == p.EventID && existing.ParticipantID == p.ParticipantID {
				return repositories.ErrPaymentConflict
			}
		}
		r.nextID++
		p.ID = r.nextID
		p.CreatedAt = time.Now()
		stored := *p
		r.byID[p.ID] = &stored
	}
	return nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id int) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePaymentRepo) FindByEventAndParticipant(_ context.Context, eventID, participantID int) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.EventID == eventID && p.ParticipantID == participantID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrPaymentNotFound
}

func (r *fakePaymentRepo) GetPaymentsByEvent(_ context.Context, eventID int) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payments := make([]models.Payment, 0)
	ids := make([]int, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := r.byID[id]
		if p.EventID != eventID {
			continue
		}
		copied := *p
		if part, ok := r.participants.byID[p.ParticipantID]; ok {
			partCopy := *part
			copied.Participant = &partCopy
		}
		payments = append(payments, copied)
	}
	return payments, nil
}

func (r *fakePaymentRepo) SetPaid(_ context.Context, _ repositories.SQLExecutor, id int, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.Paid = true
	p.PaidAt = &paidAt
	return nil
}

func (r *fakePaymentRepo) SetUnpaid(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.Paid = false
	p.PaidAt = nil
	return nil
}

func (r *fakePaymentRepo) IncrementReminders(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.Reminders++
	return nil
}

func (r *fakePaymentRepo) SetNoticeMessageID(_ context.Context, id int, messageID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	p.NoticeMessageID = messageID
	return nil
}

func (r *fakePaymentRepo) DeleteByEvent(_ context.Context, _ repositories.SQLExecutor, eventID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.byID {
		if p.EventID == eventID {
			delete(r.byID, id)
		}
	}
	return nil
}

type fakeScaffoldRepo struct {
	mu        sync.Mutex
	nextID    int
	scaffolds map[int]*models.Scaffold
}

func newFakeScaffoldRepo() *fakeScaffoldRepo {
	return &fakeScaffoldRepo{scaffolds: make(map[int]*models.Scaffold)}
}

func (r *fakeScaffoldRepo) Create(_ context.Context, s *models.Scaffold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	s.CreatedAt = time.Now()
	stored := *s
	r.scaffolds[s.ID] = &stored
	return nil
}

func (r *fakeScaffoldRepo) GetByID(_ context.Context, id int) (*models.Scaffold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scaffolds[id]
	if !ok {
		return nil, repositories.ErrScaffoldNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeScaffoldRepo) ListActive(_ context.Context) ([]models.Scaffold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := make([]models.Scaffold, 0)
	ids := make([]int, 0, len(r.scaffolds))
	for id := range r.scaffolds {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := r.scaffolds[id]
		if s.Active && s.DeletedAt == nil {
			active = append(active, *s)
		}
	}
	return active, nil
}

func (r *fakeScaffoldRepo) List(_ context.Context, includeDeleted bool) ([]models.Scaffold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]models.Scaffold, 0)
	ids := make([]int, 0, len(r.scaffolds))
	for id := range r.scaffolds {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := r.scaffolds[id]
		if !includeDeleted && s.DeletedAt != nil {
			continue
		}
		all = append(all, *s)
	}
	return all, nil
}

func (r *fakeScaffoldRepo) Update(_ context.Context, s *models.Scaffold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.scaffolds[s.ID]
	if !ok {
		return repositories.ErrScaffoldNotFound
	}
	existing.DayOfWeek = s.DayOfWeek
	existing.TimeOfDay = s.TimeOfDay
	existing.Courts = s.Courts
	existing.Active = s.Active
	existing.AnnounceDeadline = s.AnnounceDeadline
	return nil
}

func (r *fakeScaffoldRepo) SetActive(_ context.Context, id int, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scaffolds[id]
	if !ok {
		return repositories.ErrScaffoldNotFound
	}
	s.Active = active
	return nil
}

func (r *fakeScaffoldRepo) SetOwner(_ context.Context, id int, ownerID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scaffolds[id]
	if !ok {
		return repositories.ErrScaffoldNotFound
	}
	s.OwnerID = ownerID
	return nil
}

func (r *fakeScaffoldRepo) SoftDelete(_ context.Context, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scaffolds[id]
	if !ok || s.DeletedAt != nil {
		return repositories.ErrScaffoldNotFound
	}
	s.DeletedAt = &at
	return nil
}

func (r *fakeScaffoldRepo) Restore(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scaffolds[id]
	if !ok {
		return repositories.ErrScaffoldNotFound
	}
	s.DeletedAt = nil
	return nil
}

type sentMessage struct {
	chatID    int64
	messageID int
	text      string
}

// recordMessenger пишет все исходящие действия в память. Ошибки
// подставляются через поля fail*.
type recordMessenger struct {
	mu     sync.Mutex
	nextID int

	sent     []sentMessage
	edited   []sentMessage
	pinned   []int
	unpinned []int
	deleted  []sentMessage

	failSend error
	failPin  error
	failEdit error
}

func newRecordMessenger() *recordMessenger {
	return &recordMessenger{nextID: 100}
}

func (m *recordMessenger) SendMessage(_ context.Context, chatID int64, msg RenderedMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend != nil {
		return 0, m.failSend
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, messageID: m.nextID, text: msg.Text})
	return m.nextID, nil
}

func (m *recordMessenger) EditMessage(_ context.Context, chatID int64, messageID int, msg RenderedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEdit != nil {
		return m.failEdit
	}
	m.edited = append(m.edited, sentMessage{chatID: chatID, messageID: messageID, text: msg.Text})
	return nil
}

func (m *recordMessenger) PinMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPin != nil {
		return m.failPin
	}
	m.pinned = append(m.pinned, messageID)
	return nil
}

func (m *recordMessenger) UnpinMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unpinned = append(m.unpinned, messageID)
	return nil
}

func (m *recordMessenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, sentMessage{chatID: chatID, messageID: messageID})
	return nil
}

// stubRenderer возвращает фиксированный текст; содержимое сообщений в
// тестах движка не проверяется.
type stubRenderer struct{}

func (stubRenderer) RenderAnnouncement(AnnouncementView) RenderedMessage {
	return RenderedMessage{Text: "announcement"}
}

func (stubRenderer) RenderPaymentNotice(*models.Event, *models.Payment, *time.Location) RenderedMessage {
	return RenderedMessage{Text: "notice"}
}

func (stubRenderer) RenderPaymentReminder(*models.Event, *models.Payment, *time.Location) RenderedMessage {
	return RenderedMessage{Text: "reminder"}
}

type captureAudit struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (a *captureAudit) Publish(e AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *captureAudit) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	types := make([]string, 0, len(a.events))
	for _, e := range a.events {
		types = append(types, e.Type)
	}
	return types
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() Settings {
	return Settings{
		CourtPrice:      1000,
		Location:        time.UTC,
		DefaultDeadline: schedule.Deadline{Days: 1, TimeOfDay: "12:00"},
		ChannelID:       -1001,
		AdminTelegramID: 99,
	}
}

// fixture собирает движок событий на фейках.
type fixture struct {
	tx        Transactor
	eventRepo *fakeEventRepo
	partRepo  *fakeParticipantRepo
	memRepo   *fakeMembershipRepo
	payRepo   *fakePaymentRepo
	lock      *EventLock
	messenger *recordMessenger
	audit     *captureAudit
	events    *EventService
}

func newFixture() *fixture {
	f := &fixture{
		tx:        nopTx{},
		eventRepo: newFakeEventRepo(),
		partRepo:  newFakeParticipantRepo(),
		lock:      NewEventLock(),
		messenger: newRecordMessenger(),
		audit:     &captureAudit{},
	}
	f.memRepo = newFakeMembershipRepo(f.partRepo)
	f.payRepo = newFakePaymentRepo(f.partRepo)
	f.events = NewEventService(
		f.tx, f.eventRepo, f.partRepo, f.memRepo, f.payRepo,
		f.lock, testSettings(), stubRenderer{}, f.messenger, f.audit, testLogger(),
	)
	return f
}

// announcedEvent создаёт и анонсирует событие, возвращая его ID.
func (f *fixture) announcedEvent(t interface{ Fatalf(string, ...interface{}) }, courts int) int {
	ctx := context.Background()
	event, err := f.events.CreateEvent(ctx, CreateEventInput{
		StartsAt: time.Now().Add(48 * time.Hour),
		Courts:   courts,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if err := f.events.Announce(ctx, event.ID); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}
	return event.ID
}

var errBoom = errors.New("boom")
