package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotSender is the part of *tgbotapi.BotAPI the sink needs.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts selected events to an admin chat.
type Telegram struct {
	bot    BotSender
	chatID int64
	types  map[EventType]struct{}
}

func NewTelegram(bot BotSender, chatID int64, types ...EventType) *Telegram {
	if len(types) == 0 {
		types = []EventType{InvoiceIssued, CashSessionClosed, CAIActivated}
	}
	set := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return &Telegram{bot: bot, chatID: chatID, types: set}
}

func (t *Telegram) Publish(_ context.Context, ev Event) error {
	if _, ok := t.types[ev.Type]; !ok {
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(ev))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send %s: %w", ev.ID, err)
	}
	return nil
}

// FormatMessage renders an event as plain text for a chat.
func FormatMessage(ev Event) string {
	var b strings.Builder
	switch ev.Type {
	case InvoiceIssued:
		fmt.Fprintf(&b, "Factura %v emitida", ev.Payload["document_number"])
		if total, ok := ev.Payload["total"]; ok {
			fmt.Fprintf(&b, " por L %v", total)
		}
		if order, ok := ev.Payload["order_code"]; ok {
			fmt.Fprintf(&b, " (orden %v)", order)
		}
	case CashSessionClosed:
		fmt.Fprintf(&b, "Caja #%v cerrada", ev.Payload["session_id"])
		if amount, ok := ev.Payload["closing_amount"]; ok {
			fmt.Fprintf(&b, " con L %v declarados", amount)
		}
	case CAIActivated:
		fmt.Fprintf(&b, "CAI %v activado, vence %v", ev.Payload["code"], ev.Payload["expires_on"])
	default:
		fmt.Fprintf(&b, "%s", ev.Type)
	}
	b.WriteString("\n")
	b.WriteString(ev.OccurredAt.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}
