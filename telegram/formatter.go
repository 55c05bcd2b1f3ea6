package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/court-booking-bot/models"
	"github.com/Dosada05/court-booking-bot/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Formatter собирает тексты анонсов и личных уведомлений. Клавиатура
// действий подбирается по статусу события. Реализует services.Renderer.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "понедельник",
	time.Tuesday:   "вторник",
	time.Wednesday: "среда",
	time.Thursday:  "четверг",
	time.Friday:    "пятница",
	time.Saturday:  "суббота",
	time.Sunday:    "воскресенье",
}

func formatWhen(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return fmt.Sprintf("%s, %s", weekdayNames[local.Weekday()], local.Format("02.01.2006 15:04"))
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func (f *Formatter) RenderAnnouncement(view services.AnnouncementView) services.RenderedMessage {
	event := view.Event

	var b strings.Builder
	switch event.Status {
	case models.StatusCancelled:
		b.WriteString("🚫 <b>Игра отменена</b>\n")
	case models.StatusFinalized:
		b.WriteString("🔒 <b>Игра</b> (запись закрыта)\n")
	default:
		b.WriteString("🏸 <b>Игра</b>\n")
	}
	fmt.Fprintf(&b, "📅 %s\n", formatWhen(event.StartsAt, view.Location))
	fmt.Fprintf(&b, "🏟 Кортов: %d\n", event.Courts)

	if len(view.Participants) == 0 {
		b.WriteString("\nПока никто не записался.")
	} else {
		total := 0
		b.WriteString("\n<b>Участники:</b>\n")
		for i, ep := range view.Participants {
			total += ep.Participations
			fmt.Fprintf(&b, "%d. %s", i+1, ep.Participant.DisplayName())
			if ep.Participations > 1 {
				fmt.Fprintf(&b, " ×%d", ep.Participations)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Всего слотов: %d", total)
	}

	if event.Status == models.StatusFinalized && len(view.Payments) > 0 {
		b.WriteString("\n\n<b>Оплата:</b>\n")
		for _, p := range view.Payments {
			mark := "⌛"
			if p.Paid {
				mark = "✅"
			}
			name := ""
			if p.Participant != nil {
				name = p.Participant.DisplayName()
			}
			fmt.Fprintf(&b, "%s %s — %s\n", mark, name, formatAmount(p.Amount))
		}
	}

	return services.RenderedMessage{
		Text:   b.String(),
		Markup: keyboardFor(event),
	}
}

// keyboardFor возвращает клавиатуру действий для текущего статуса.
// Финализированное событие кнопок записи не показывает.
func keyboardFor(event *models.Event) *tgbotapi.InlineKeyboardMarkup {
	id := event.ID
	switch event.Status {
	case models.StatusAnnounced:
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Записаться", fmt.Sprintf("join:%d", id)),
				tgbotapi.NewInlineKeyboardButtonData("➖ Выйти", fmt.Sprintf("leave:%d", id)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("➕ Корт", fmt.Sprintf("court_add:%d", id)),
				tgbotapi.NewInlineKeyboardButtonData("➖ Корт", fmt.Sprintf("court_del:%d", id)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔒 Закрыть запись", fmt.Sprintf("finalize:%d", id)),
				tgbotapi.NewInlineKeyboardButtonData("🚫 Отменить", fmt.Sprintf("cancel:%d", id)),
			),
		)
		return &kb
	case models.StatusFinalized:
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("💰 Я оплатил(а)", fmt.Sprintf("paid:%d", id)),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("↩️ Открыть запись", fmt.Sprintf("unfinalize:%d", id)),
			),
		)
		return &kb
	case models.StatusCancelled:
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("♻️ Восстановить", fmt.Sprintf("restore:%d", id)),
			),
		)
		return &kb
	}
	return nil
}

func (f *Formatter) RenderPaymentNotice(event *models.Event, payment *models.Payment, loc *time.Location) services.RenderedMessage {
	text := fmt.Sprintf(
		"💸 Игра %s\nВаша доля: <b>%s</b>\nКогда оплатите, нажмите кнопку ниже.",
		formatWhen(event.StartsAt, loc), formatAmount(payment.Amount),
	)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Оплачено", fmt.Sprintf("paid:%d", event.ID)),
		),
	)
	return services.RenderedMessage{Text: text, Markup: &kb}
}

func (f *Formatter) RenderPaymentReminder(event *models.Event, payment *models.Payment, loc *time.Location) services.RenderedMessage {
	text := fmt.Sprintf(
		"🔔 Напоминание: за игру %s осталось оплатить <b>%s</b>.",
		formatWhen(event.StartsAt, loc), formatAmount(payment.Amount),
	)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Оплачено", fmt.Sprintf("paid:%d", event.ID)),
		),
	)
	return services.RenderedMessage{Text: text, Markup: &kb}
}
