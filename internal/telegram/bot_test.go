package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"dailylog-bot/internal/dispatch"
	"dailylog-bot/internal/records"
)

type fakeSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeHandler struct {
	got  []dispatch.Message
	resp dispatch.Response
}

func (f *fakeHandler) Handle(ctx context.Context, msg dispatch.Message) dispatch.Response {
	f.got = append(f.got, msg)
	return f.resp
}

func (f *fakeHandler) KeyboardFor(userID int64) [][]string {
	if userID == 666 {
		return nil
	}
	return [][]string{{dispatch.LabelList}}
}

func newTestBot(h Handler) (*Bot, *fakeSender) {
	fs := &fakeSender{}
	return &Bot{s: fs, handler: h, log: zerolog.Nop()}, fs
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "alice", FirstName: "Alice", LastName: "L"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}
}

func TestHandleIncomingMessage_SendsTextWithKeyboard(t *testing.T) {
	h := &fakeHandler{resp: dispatch.Response{Text: "Нет записей."}}
	b, fs := newTestBot(h)

	b.handleIncomingMessage(context.Background(), textMessage(42, dispatch.LabelList))

	if len(h.got) != 1 || h.got[0].UserID != 42 || h.got[0].FullName != "Alice L" || h.got[0].Text != dispatch.LabelList {
		t.Fatalf("unexpected dispatched message: %+v", h.got)
	}
	if len(fs.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fs.sent))
	}
	out := fs.sent[0].(tgbotapi.MessageConfig)
	if out.Text != "Нет записей." || out.ChatID != 42 {
		t.Fatalf("unexpected message %+v", out)
	}
	kb, ok := out.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok || kb.Keyboard[0][0].Text != dispatch.LabelList {
		t.Fatalf("keyboard missing: %#v", out.ReplyMarkup)
	}
}

func TestHandleIncomingMessage_UnauthorizedGetsNoKeyboard(t *testing.T) {
	h := &fakeHandler{resp: dispatch.Response{
		Text:    "⛔ Нет доступа.",
		Notices: []dispatch.Notice{{UserID: 1, Text: "request", GrantID: 666}},
	}}
	b, fs := newTestBot(h)

	b.handleIncomingMessage(context.Background(), textMessage(666, "hi"))

	if len(fs.sent) != 2 {
		t.Fatalf("expected reply and notice, got %d", len(fs.sent))
	}
	reply := fs.sent[0].(tgbotapi.MessageConfig)
	if _, ok := reply.ReplyMarkup.(tgbotapi.ReplyKeyboardRemove); !ok {
		t.Fatalf("denied user got a keyboard: %#v", reply.ReplyMarkup)
	}
	notice := fs.sent[1].(tgbotapi.MessageConfig)
	ik, ok := notice.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if notice.ChatID != 1 || !ok || *ik.InlineKeyboard[0][0].CallbackData != "grant:666" {
		t.Fatalf("grant button missing: %#v", notice)
	}
}

func TestRender_SplitsLongText(t *testing.T) {
	var rows []string
	for i := 1; i <= 120; i++ {
		rows = append(rows, fmt.Sprintf("%d. 101 | 1234567890 | ООО Ромашка и партнёры %d | бумага", i, i))
	}
	text := "Добавлено. Всего строк: 120\n\n" + strings.Join(rows, "\n")
	if utf8.RuneCountInString(text) <= maxMessageRunes {
		t.Fatalf("fixture too short: %d runes", utf8.RuneCountInString(text))
	}
	h := &fakeHandler{resp: dispatch.Response{Text: text}}
	b, fs := newTestBot(h)

	b.handleIncomingMessage(context.Background(), textMessage(42, "a\nb\nc\nd"))

	if len(fs.sent) < 2 {
		t.Fatalf("expected the reply to be split, got %d message(s)", len(fs.sent))
	}
	var parts []string
	for _, c := range fs.sent {
		out := c.(tgbotapi.MessageConfig)
		if n := utf8.RuneCountInString(out.Text); n > maxMessageRunes {
			t.Fatalf("part of %d runes exceeds the limit", n)
		}
		if _, ok := out.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
			t.Fatalf("part without keyboard: %#v", out.ReplyMarkup)
		}
		parts = append(parts, out.Text)
	}
	if got := strings.Join(parts, "\n"); got != text {
		t.Fatalf("rows lost or reordered across parts")
	}
}

func TestSplitText_HardCutWithoutNewline(t *testing.T) {
	parts := splitText(strings.Repeat("я", 10), 4)
	if len(parts) != 3 || parts[0] != "яяяя" || parts[2] != "яя" {
		t.Fatalf("unexpected parts %q", parts)
	}
}

func TestRender_SendsDocument(t *testing.T) {
	h := &fakeHandler{resp: dispatch.Response{File: &records.File{Name: "data_2026-01-01.xlsx", Data: []byte("xlsx")}}}
	b, fs := newTestBot(h)

	b.handleIncomingMessage(context.Background(), textMessage(42, dispatch.LabelDownload))

	if len(fs.sent) != 1 {
		t.Fatalf("expected 1 document, got %d", len(fs.sent))
	}
	doc, ok := fs.sent[0].(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("expected document, got %T", fs.sent[0])
	}
	fb, ok := doc.File.(tgbotapi.FileBytes)
	if !ok || fb.Name != "data_2026-01-01.xlsx" || string(fb.Bytes) != "xlsx" {
		t.Fatalf("unexpected file %#v", doc.File)
	}
}

func TestHandleCallback_GrantBecomesCommand(t *testing.T) {
	h := &fakeHandler{resp: dispatch.Response{Text: "Доступ выдан пользователю 666."}}
	b, fs := newTestBot(h)

	b.handleCallback(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 1, UserName: "root"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
		Data:    "grant:666",
	})

	if len(h.got) != 1 || h.got[0].Text != "/grant 666" || h.got[0].UserID != 1 {
		t.Fatalf("callback not routed as grant: %+v", h.got)
	}
	if len(fs.requests) != 1 {
		t.Fatalf("callback not answered")
	}
	if len(fs.sent) != 1 {
		t.Fatalf("grant result not sent")
	}
}

func TestRouter_WebhookAndHealth(t *testing.T) {
	h := &fakeHandler{resp: dispatch.Response{Text: "ok"}}
	b, fs := newTestBot(h)
	srv := httptest.NewServer(b.Router("/hook/secret"))
	defer srv.Close()

	body := `{"update_id":1,"message":{"message_id":5,"from":{"id":42,"is_bot":false,"first_name":"A","username":"alice"},"chat":{"id":42,"type":"private"},"date":0,"text":"/list"}}`
	resp, err := http.Post(srv.URL+"/hook/secret", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(h.got) != 1 || h.got[0].Text != "/list" || len(fs.sent) != 1 {
		t.Fatalf("update not handled: %+v", h.got)
	}

	resp, err = http.Post(srv.URL+"/hook/secret", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed update accepted: %d", resp.StatusCode)
	}

	for _, p := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + p)
		if err != nil {
			t.Fatalf("get %s: %v", p, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", p, resp.StatusCode)
		}
	}
}
