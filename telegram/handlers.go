package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/court-booking-bot/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handlers разбирает команды и callback-нажатия и транслирует их в
// вызовы сервисов. Ни одна ошибка сервиса не покидает обработчик:
// пользователь получает текст, лог получает детали.
type Handlers struct {
	events    *services.EventService
	payments  *services.PaymentService
	scaffolds *services.ScaffoldService
	spawner   *services.SpawnerService
	reports   *services.ReportService
	client    *Client
	settings  services.Settings
	logger    *slog.Logger
}

func NewHandlers(
	events *services.EventService,
	payments *services.PaymentService,
	scaffolds *services.ScaffoldService,
	spawner *services.SpawnerService,
	reports *services.ReportService,
	client *Client,
	settings services.Settings,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		events:    events,
		payments:  payments,
		scaffolds: scaffolds,
		spawner:   spawner,
		reports:   reports,
		client:    client,
		settings:  settings,
		logger:    logger,
	}
}

func (h *Handlers) isAdmin(telegramID int64) bool {
	return telegramID == h.settings.AdminTelegramID
}

func identityFrom(user *tgbotapi.User) services.Identity {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	return services.Identity{
		TelegramID: user.ID,
		Username:   user.UserName,
		Name:       name,
	}
}

// HandleUpdate - единая точка входа для апдейтов Telegram.
func (h *Handlers) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(ctx, update.Message)
	}
}

// ---------- Callback-кнопки ----------

func (h *Handlers) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	verb, eventID, err := parseCallbackData(cb.Data)
	if err != nil {
		h.answer(cb.ID, "Неизвестное действие.")
		return
	}
	who := identityFrom(cb.From)

	switch verb {
	case "join":
		err = h.events.Join(ctx, eventID, who)
	case "leave":
		err = h.events.Leave(ctx, eventID, who)
	case "court_add":
		err = h.adminOnly(who, func() error { return h.events.AddCourt(ctx, eventID) })
	case "court_del":
		err = h.adminOnly(who, func() error { return h.events.RemoveCourt(ctx, eventID) })
	case "finalize":
		err = h.adminOnly(who, func() error { return h.events.Finalize(ctx, eventID) })
	case "unfinalize":
		err = h.adminOnly(who, func() error { return h.events.Unfinalize(ctx, eventID) })
	case "cancel":
		err = h.adminOnly(who, func() error { return h.events.Cancel(ctx, eventID) })
	case "restore":
		err = h.adminOnly(who, func() error { return h.events.Restore(ctx, eventID) })
	case "paid":
		err = h.payments.TogglePaidByTelegram(ctx, eventID, who.TelegramID)
	default:
		h.answer(cb.ID, "Неизвестное действие.")
		return
	}

	if err != nil {
		h.logger.Info("callback rejected",
			slog.String("verb", verb), slog.Int("event_id", eventID),
			slog.Int64("from", who.TelegramID), slog.Any("error", err))
		h.answer(cb.ID, userMessage(err))
		return
	}
	h.answer(cb.ID, "Готово.")
}

func parseCallbackData(data string) (verb string, eventID int, err error) {
	verb, rawID, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed callback data: %q", data)
	}
	eventID, err = strconv.Atoi(rawID)
	if err != nil {
		return "", 0, fmt.Errorf("malformed callback event id: %q", data)
	}
	return verb, eventID, nil
}

func (h *Handlers) adminOnly(who services.Identity, fn func() error) error {
	if !h.isAdmin(who.TelegramID) {
		return services.ErrForbidden
	}
	return fn()
}

func (h *Handlers) answer(callbackID, text string) {
	if err := h.client.AnswerCallback(callbackID, text); err != nil {
		h.logger.Warn("failed to answer callback", slog.Any("error", err))
	}
}

// ---------- Команды ----------

func (h *Handlers) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	who := identityFrom(m.From)
	args := strings.Fields(m.CommandArguments())

	var reply string
	switch m.Command() {
	case "start", "help":
		reply = helpText
	case "events":
		reply = h.cmdEvents(ctx)
	case "newevent":
		reply = h.withAdmin(who, func() string { return h.cmdNewEvent(ctx, args, who) })
	case "newscaffold":
		reply = h.withAdmin(who, func() string { return h.cmdNewScaffold(ctx, args, who) })
	case "scaffolds":
		reply = h.withAdmin(who, func() string { return h.cmdScaffolds(ctx) })
	case "toggle":
		reply = h.withAdmin(who, func() string { return h.cmdToggle(ctx, args) })
	case "transfer":
		reply = h.withAdmin(who, func() string { return h.cmdTransfer(ctx, args) })
	case "delscaffold":
		reply = h.withAdmin(who, func() string { return h.cmdScaffoldID(args, func(id int) error { return h.scaffolds.SoftDeleteScaffold(ctx, id) }) })
	case "restorescaffold":
		reply = h.withAdmin(who, func() string { return h.cmdScaffoldID(args, func(id int) error { return h.scaffolds.RestoreScaffold(ctx, id) }) })
	case "finalize":
		reply = h.withAdmin(who, func() string { return h.cmdEventID(args, func(id int) error { return h.events.Finalize(ctx, id) }) })
	case "unfinalize":
		reply = h.withAdmin(who, func() string { return h.cmdEventID(args, func(id int) error { return h.events.Unfinalize(ctx, id) }) })
	case "cancel":
		reply = h.withAdmin(who, func() string { return h.cmdEventID(args, func(id int) error { return h.events.Cancel(ctx, id) }) })
	case "restore":
		reply = h.withAdmin(who, func() string { return h.cmdEventID(args, func(id int) error { return h.events.Restore(ctx, id) }) })
	case "remind":
		reply = h.withAdmin(who, func() string { return h.cmdRemind(ctx, args) })
	case "report":
		reply = h.withAdmin(who, func() string { return h.cmdReport(ctx, args) })
	case "spawn":
		reply = h.withAdmin(who, func() string { return h.cmdSpawn(ctx) })
	default:
		return
	}

	if reply == "" {
		return
	}
	if _, err := h.client.SendMessage(ctx, m.Chat.ID, services.RenderedMessage{Text: reply}); err != nil {
		h.logger.Warn("failed to send reply", slog.Any("error", err))
	}
}

const helpText = `🏸 Бот расписания игр.

Запись — кнопками под анонсом в канале.

Команды администратора:
/newevent ДД.ММ.ГГГГ ЧЧ:ММ кортов — разовое событие
/newscaffold день ЧЧ:ММ кортов [дедлайн] — еженедельный шаблон
/scaffolds — список шаблонов
/toggle id — вкл/выкл шаблон
/transfer id tg_id — передать шаблон
/events — ближайшие события
/finalize id, /unfinalize id, /cancel id, /restore id
/remind id — напомнить должникам
/report id — CSV-отчёт по оплате
/spawn — внеочередная проверка шаблонов`

func (h *Handlers) withAdmin(who services.Identity, fn func() string) string {
	if !h.isAdmin(who.TelegramID) {
		return "Доступ запрещён."
	}
	return fn()
}

func (h *Handlers) cmdEvents(ctx context.Context) string {
	events, err := h.events.ListUpcoming(ctx, time.Now())
	if err != nil {
		h.logger.Error("failed to list events", slog.Any("error", err))
		return "Не получилось загрузить события."
	}
	if len(events) == 0 {
		return "Ближайших событий нет."
	}
	var b strings.Builder
	b.WriteString("Ближайшие события:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "#%d — %s, кортов: %d, статус: %s\n",
			e.ID, formatWhen(e.StartsAt, h.settings.Location), e.Courts, e.Status)
	}
	return b.String()
}

func (h *Handlers) cmdNewEvent(ctx context.Context, args []string, who services.Identity) string {
	if len(args) != 3 {
		return "Использование: /newevent ДД.ММ.ГГГГ ЧЧ:ММ кортов"
	}
	startsAt, err := time.ParseInLocation("02.01.2006 15:04", args[0]+" "+args[1], h.settings.Location)
	if err != nil {
		return "Не понял дату. Формат: ДД.ММ.ГГГГ ЧЧ:ММ"
	}
	courts, err := strconv.Atoi(args[2])
	if err != nil || courts < 1 {
		return "Число кортов должно быть положительным."
	}
	owner := who.TelegramID
	event, err := h.events.CreateEvent(ctx, services.CreateEventInput{
		StartsAt: startsAt,
		Courts:   courts,
		OwnerID:  &owner,
	})
	if err != nil {
		return userMessage(err)
	}
	if err := h.events.Announce(ctx, event.ID); err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("Событие #%d создано и анонсировано.", event.ID)
}

func (h *Handlers) cmdNewScaffold(ctx context.Context, args []string, who services.Identity) string {
	if len(args) < 3 {
		return "Использование: /newscaffold день ЧЧ:ММ кортов [дедлайн, например -1d 12:00]"
	}
	courts, err := strconv.Atoi(args[2])
	if err != nil {
		return "Число кортов должно быть целым."
	}
	in := services.CreateScaffoldInput{
		DayOfWeek: args[0],
		TimeOfDay: args[1],
		Courts:    courts,
	}
	if len(args) > 3 {
		deadline := strings.Join(args[3:], " ")
		in.AnnounceDeadline = &deadline
	}
	owner := who.TelegramID
	in.OwnerID = &owner

	scaffold, err := h.scaffolds.CreateScaffold(ctx, in)
	if err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("Шаблон #%d создан: %s %s, кортов: %d.",
		scaffold.ID, scaffold.DayOfWeek, scaffold.TimeOfDay, scaffold.Courts)
}

func (h *Handlers) cmdScaffolds(ctx context.Context) string {
	scaffolds, err := h.scaffolds.ListScaffolds(ctx, false)
	if err != nil {
		h.logger.Error("failed to list scaffolds", slog.Any("error", err))
		return "Не получилось загрузить шаблоны."
	}
	if len(scaffolds) == 0 {
		return "Шаблонов нет."
	}
	var b strings.Builder
	b.WriteString("Шаблоны:\n")
	for _, s := range scaffolds {
		state := "выкл"
		if s.Active {
			state = "вкл"
		}
		fmt.Fprintf(&b, "#%d — %s %s, кортов: %d [%s]\n", s.ID, s.DayOfWeek, s.TimeOfDay, s.Courts, state)
	}
	return b.String()
}

func (h *Handlers) cmdToggle(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /toggle id"
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "Нужен числовой id шаблона."
	}
	active, err := h.scaffolds.ToggleActive(ctx, id)
	if err != nil {
		return userMessage(err)
	}
	if active {
		return fmt.Sprintf("Шаблон #%d включён.", id)
	}
	return fmt.Sprintf("Шаблон #%d выключен.", id)
}

func (h *Handlers) cmdTransfer(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "Использование: /transfer id tg_id"
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "Нужен числовой id шаблона."
	}
	ownerID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "Нужен числовой Telegram ID нового владельца."
	}
	if err := h.scaffolds.TransferOwner(ctx, id, ownerID); err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("Шаблон #%d передан пользователю %d.", id, ownerID)
}

func (h *Handlers) cmdScaffoldID(args []string, fn func(int) error) string {
	if len(args) != 1 {
		return "Нужен числовой id шаблона."
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "Нужен числовой id шаблона."
	}
	if err := fn(id); err != nil {
		return userMessage(err)
	}
	return "Готово."
}

func (h *Handlers) cmdEventID(args []string, fn func(int) error) string {
	if len(args) != 1 {
		return "Нужен числовой id события."
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "Нужен числовой id события."
	}
	if err := fn(id); err != nil {
		return userMessage(err)
	}
	return "Готово."
}

func (h *Handlers) cmdRemind(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /remind id"
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "Нужен числовой id события."
	}
	sent, err := h.payments.RemindUnpaid(ctx, id)
	if err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("Напоминаний отправлено: %d.", sent)
}

func (h *Handlers) cmdReport(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Использование: /report id"
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "Нужен числовой id события."
	}
	report, err := h.reports.BuildAndUpload(ctx, id)
	if err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("Отчёт по событию #%d: %s", id, report.URL)
}

func (h *Handlers) cmdSpawn(ctx context.Context) string {
	created, err := h.spawner.CheckAndCreateEventsFromScaffolds(ctx)
	if err != nil {
		return userMessage(err)
	}
	return fmt.Sprintf("Создано событий: %d.", created)
}

// userMessage переводит ошибку сервиса в текст для пользователя.
func userMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "Не найдено."
	case errors.Is(err, services.ErrOperationInProgress):
		return "Операция уже выполняется, попробуйте ещё раз."
	case errors.Is(err, services.ErrEventNotEditable):
		return "Запись на это событие закрыта."
	case errors.Is(err, services.ErrNotMember):
		return "Вы не записаны на это событие."
	case errors.Is(err, services.ErrLastCourt):
		return "Нельзя убрать последний корт."
	case errors.Is(err, services.ErrNoParticipants):
		return "Нельзя закрыть запись без участников."
	case errors.Is(err, services.ErrInvalidTransition):
		return "Действие недоступно в текущем статусе события."
	case errors.Is(err, services.ErrInvalidScaffold):
		return "Неверные параметры шаблона."
	case errors.Is(err, services.ErrForbidden):
		return "Доступ запрещён."
	case errors.Is(err, services.ErrReportsDisabled):
		return "Отчёты не настроены."
	default:
		return "Что-то пошло не так, попробуйте позже."
	}
}
