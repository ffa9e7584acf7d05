package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"dailylog-bot/internal/dispatch"
)

const grantCallbackPrefix = "grant:"

// Handler is the transport-independent core.
type Handler interface {
	Handle(ctx context.Context, msg dispatch.Message) dispatch.Response
	KeyboardFor(userID int64) [][]string
}

type Bot struct {
	api     *tgbotapi.BotAPI
	s       sender
	handler Handler
	log     zerolog.Logger
}

func New(botToken string, handler Handler, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", api.Self.UserName).Msg("authorized on telegram")
	return &Bot{api: api, s: botAPISender{api: api}, handler: handler, log: log}, nil
}

// Start receives updates by long polling until ctx is done. Updates are
// handled one at a time, in order. A turn already started runs to completion
// after ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.s.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(context.WithoutCancel(ctx), update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleIncomingMessage(ctx, update.Message)
		return
	}
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	b.log.Debug().Int64("user_id", msg.From.ID).Str("username", msg.From.UserName).Str("text", text).Msg("incoming message")

	resp := b.handler.Handle(ctx, toMessage(msg.From, text))
	b.render(msg.Chat.ID, msg.From.ID, resp)
}

// handleCallback turns the grant button of an access request into a grant
// command from the superuser who pressed it.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("failed to answer callback")
	}
	if cb.Message == nil || cb.Message.Chat == nil || !strings.HasPrefix(cb.Data, grantCallbackPrefix) {
		return
	}
	id := strings.TrimPrefix(cb.Data, grantCallbackPrefix)
	resp := b.handler.Handle(ctx, toMessage(cb.From, "/grant "+id))
	b.render(cb.Message.Chat.ID, cb.From.ID, resp)
}

func toMessage(u *tgbotapi.User, text string) dispatch.Message {
	return dispatch.Message{
		UserID:   u.ID,
		Username: u.UserName,
		FullName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Text:     text,
	}
}

func (b *Bot) render(chatID, userID int64, resp dispatch.Response) {
	kb := b.keyboard(userID)
	if resp.File != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: resp.File.Name, Bytes: resp.File.Data})
		doc.Caption = resp.Text
		doc.ReplyMarkup = kb
		if _, err := b.s.Send(doc); err != nil {
			b.log.Error().Err(err).Str("file", resp.File.Name).Msg("failed to send document")
		}
	} else if resp.Text != "" {
		for _, part := range splitText(resp.Text, maxMessageRunes) {
			out := tgbotapi.NewMessage(chatID, part)
			out.ReplyMarkup = kb
			b.send(out)
		}
	}
	b.Deliver(resp.Notices)
}

// maxMessageRunes is the Bot API limit for one text message.
const maxMessageRunes = 4096

// splitText cuts text into parts of at most limit runes, breaking after a
// newline when one is available.
func splitText(text string, limit int) []string {
	var parts []string
	r := []rune(text)
	for len(r) > limit {
		cut := limit
		for i := limit; i > 0; i-- {
			if r[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(r[:cut]), "\n"))
		r = r[cut:]
	}
	return append(parts, string(r))
}

// Deliver sends notices to their recipients' private chats.
func (b *Bot) Deliver(notices []dispatch.Notice) {
	for _, n := range notices {
		out := tgbotapi.NewMessage(n.UserID, n.Text)
		if n.GrantID != 0 {
			out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("Выдать доступ", grantCallbackPrefix+strconv.FormatInt(n.GrantID, 10)),
				),
			)
		} else {
			out.ReplyMarkup = b.keyboard(n.UserID)
		}
		b.send(out)
	}
}

// keyboard is the reply keyboard for userID, or a keyboard removal for
// users without access.
func (b *Bot) keyboard(userID int64) interface{} {
	labelRows := b.handler.KeyboardFor(userID)
	if len(labelRows) == 0 {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	var rows [][]tgbotapi.KeyboardButton
	for _, labels := range labelRows {
		var row []tgbotapi.KeyboardButton
		for _, l := range labels {
			row = append(row, tgbotapi.NewKeyboardButton(l))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) send(c tgbotapi.MessageConfig) {
	if _, err := b.s.Send(c); err != nil {
		b.log.Error().Err(err).Int64("chat_id", c.ChatID).Msg("failed to send message")
	}
}
