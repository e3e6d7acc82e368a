// Package bot relays Telegram messages to the chat service and sends
// the grounded answers back to the user.
package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fallbackReply is sent when the chat service cannot be reached.
const fallbackReply = "Erro ao conectar com o chatbot."

const startReply = "Olá! Envie uma pergunta sobre o cultivo hidropônico e eu respondo com base nos dados dos sensores."

// Answerer produces a reply for a user question. Implementations report
// domain failures in the returned text and reserve the error for
// transport problems.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	answerer Answerer
	logger   *slog.Logger
}

func New(token string, answerer Answerer, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, answerer: answerer, logger: logger}, nil
}

// Run long-polls Telegram for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := b.api.GetUpdatesChan(cfg)
	b.logger.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message

	reply := b.replyFor(ctx, msg)
	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("sending telegram reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) replyFor(ctx context.Context, msg *tgbotapi.Message) string {
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			return startReply
		default:
			return "Comando desconhecido. Envie sua pergunta como texto."
		}
	}

	answer, err := b.answerer.Answer(ctx, msg.Text)
	if err != nil {
		b.logger.Error("reaching chat service", "error", err)
		return fallbackReply
	}
	return answer
}
