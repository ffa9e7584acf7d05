// Package dispatch turns one inbound user message into one response. It
// checks access, consumes or starts the user's pending flow and runs the
// record store operations. Transport concerns stay outside.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dailylog-bot/internal/apperr"
	"dailylog-bot/internal/audit"
	"dailylog-bot/internal/metrics"
	"dailylog-bot/internal/pending"
	"dailylog-bot/internal/records"
)

const recordLines = 4

// RecordStore is the day-keyed log storage.
type RecordStore interface {
	Ensure(ctx context.Context, key string) error
	Append(ctx context.Context, key string, fields records.Fields, actor string, ts time.Time) (int, error)
	List(ctx context.Context, key string) ([]string, error)
	Count(ctx context.Context, key string) (int, error)
	DeleteAt(ctx context.Context, key string, position int) error
	Reset(ctx context.Context, key string) error
	ListArchive(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, key string) (records.File, error)
}

// AccessRegistry is the allow-list merged with the fixed superusers.
type AccessRegistry interface {
	IsAuthorized(userID int64) bool
	IsSuperuser(userID int64) bool
	Grant(ctx context.Context, userID int64) error
	Revoke(ctx context.Context, userID int64) error
	List() []int64
	Superusers() []int64
}

// Message is an inbound text from a user.
type Message struct {
	UserID   int64
	Username string
	FullName string
	Text     string
}

// Notice is a message for someone other than the sender. A non-zero
// GrantID asks the transport to offer a one-tap grant for that user.
type Notice struct {
	UserID  int64
	Text    string
	GrantID int64
}

// Response is the semantic result of one turn. Err carries the error kind
// when the turn failed; Text is always meant for the user.
type Response struct {
	Text    string
	File    *records.File
	Err     error
	Notices []Notice
}

type Options struct {
	ConfirmToken string
	Location     *time.Location
	Now          func() time.Time
	// Audit receives state-changing actions; nil disables the journal.
	Audit audit.Recorder
}

type Dispatcher struct {
	store   RecordStore
	auth    AccessRegistry
	pending *pending.Store
	log     zerolog.Logger

	confirmToken string
	loc          *time.Location
	now          func() time.Time
	journal      audit.Recorder

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	requestedMu sync.Mutex
	requested   map[int64]bool
}

func New(store RecordStore, auth AccessRegistry, pend *pending.Store, log zerolog.Logger, opts Options) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ConfirmToken == "" {
		opts.ConfirmToken = "ДА"
	}
	return &Dispatcher{
		store:        store,
		auth:         auth,
		pending:      pend,
		log:          log,
		confirmToken: opts.ConfirmToken,
		loc:          opts.Location,
		now:          opts.Now,
		journal:      opts.Audit,
		locks:        make(map[int64]*sync.Mutex),
		requested:    make(map[int64]bool),
	}
}

// Handle processes one turn. Turns of the same user run one at a time.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) Response {
	text := strings.TrimSpace(msg.Text)
	cmd, arg := parseCommand(text)
	metrics.TurnsTotal.WithLabelValues(cmd.String()).Inc()

	if !d.auth.IsAuthorized(msg.UserID) {
		return d.denied(msg)
	}

	unlock := d.lockUser(msg.UserID)
	defer unlock()

	// Every turn consumes the pending slot, so no flow outlives one reply.
	prev := d.pending.Take(msg.UserID)

	if cmd.superuserOnly() && !d.auth.IsSuperuser(msg.UserID) {
		d.log.Warn().Int64("user_id", msg.UserID).Str("command", cmd.String()).Msg("superuser command refused")
		return Response{Text: "⛔ Команда доступна только администраторам.", Err: apperr.ErrAccessDenied}
	}

	switch cmd {
	case cmdStart:
		return Response{Text: helpText}
	case cmdList:
		return d.list(ctx)
	case cmdDownload:
		return d.download(ctx)
	case cmdClear:
		d.pending.Set(msg.UserID, pending.Action{Kind: pending.AwaitingClearConfirmation})
		return Response{Text: fmt.Sprintf("Удалить все записи за сегодня? Для подтверждения отправь «%s».", d.confirmToken)}
	case cmdDelete:
		d.pending.Set(msg.UserID, pending.Action{Kind: pending.AwaitingDeleteIndex})
		return Response{Text: "Введи номер строки для удаления:"}
	case cmdArchive:
		return d.startArchive(ctx, msg.UserID)
	case cmdGrant:
		if arg == "" {
			d.pending.Set(msg.UserID, pending.Action{Kind: pending.AwaitingGrantID})
			return Response{Text: "Введи ID пользователя:"}
		}
		return d.grant(ctx, msg.UserID, arg)
	case cmdRevoke:
		return d.revoke(ctx, msg.UserID, arg)
	case cmdUsers:
		return d.users()
	}

	if prev.Kind != pending.Idle {
		return d.resolve(ctx, msg, prev, text)
	}
	return d.appendRecord(ctx, msg, text)
}

const helpText = "🤖 Бот учёта сообщений.\n\n" +
	"Отправь сообщение из 4 строк — оно попадёт в Excel.\n" +
	"1 стр: ВСП; 2 стр: ИНН; 3 стр: наименование; 4 стр: бумага/эл"

func (d *Dispatcher) today() (string, time.Time) {
	now := d.now().In(d.loc)
	return records.DailyKey(now), now
}

func (d *Dispatcher) appendRecord(ctx context.Context, msg Message, text string) Response {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) != recordLines {
		return Response{
			Text: fmt.Sprintf("❌ Не добавлено.\nПолучено строк: %d\nНужно: %d", len(lines), recordLines),
			Err:  apperr.Validation("got %d lines, want %d", len(lines), recordLines),
		}
	}

	var fields records.Fields
	copy(fields[:], lines)
	key, now := d.today()
	n, err := d.store.Append(ctx, key, fields, actorName(msg), now)
	if err != nil {
		return d.failure(msg, "append", err)
	}

	d.record(msg, audit.ActionAppend, key, fields[2])

	out := fmt.Sprintf("Добавлено. Всего строк: %d", n)
	if rows, err := d.store.List(ctx, key); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("list after append failed")
	} else {
		out += "\n\n" + strings.Join(rows, "\n")
	}
	return Response{Text: out}
}

func (d *Dispatcher) list(ctx context.Context) Response {
	key, _ := d.today()
	rows, err := d.store.List(ctx, key)
	if err != nil {
		return d.failure(Message{}, "list", err)
	}
	if len(rows) == 0 {
		return Response{Text: "Нет записей."}
	}
	return Response{Text: strings.Join(rows, "\n")}
}

func (d *Dispatcher) download(ctx context.Context) Response {
	key, _ := d.today()
	if err := d.store.Ensure(ctx, key); err != nil {
		return d.failure(Message{}, "ensure", err)
	}
	f, err := d.store.Fetch(ctx, key)
	if err != nil {
		return d.failure(Message{}, "fetch", err)
	}
	return Response{File: &f}
}

func (d *Dispatcher) startArchive(ctx context.Context, userID int64) Response {
	names, err := d.store.ListArchive(ctx)
	if err != nil {
		return d.failure(Message{UserID: userID}, "list archive", err)
	}
	if len(names) == 0 {
		return Response{Text: "Архив пуст."}
	}
	d.pending.Set(userID, pending.Action{Kind: pending.AwaitingArchiveSelection, Archive: names})

	var b strings.Builder
	b.WriteString("🗂 Архив:\n")
	for i, n := range names {
		fmt.Fprintf(&b, "%d. %s\n", i+1, n)
	}
	b.WriteString("\nОтправь номер файла:")
	return Response{Text: b.String()}
}

// resolve answers the pending flow with this turn's text. The flow is
// already consumed, whatever the outcome.
func (d *Dispatcher) resolve(ctx context.Context, msg Message, prev pending.Action, text string) Response {
	switch prev.Kind {
	case pending.AwaitingDeleteIndex:
		pos, err := strconv.Atoi(text)
		if err != nil {
			return Response{Text: "Нужно число.", Err: apperr.Validation("delete index %q is not a number", text)}
		}
		key, _ := d.today()
		if err := d.store.DeleteAt(ctx, key, pos); err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				return Response{Text: fmt.Sprintf("Строки %d нет.", pos), Err: err}
			}
			return d.failure(msg, "delete", err)
		}
		d.record(msg, audit.ActionDelete, key, strconv.Itoa(pos))
		return Response{Text: fmt.Sprintf("Удалена строка %d.", pos)}

	case pending.AwaitingClearConfirmation:
		if !strings.EqualFold(text, d.confirmToken) {
			return Response{Text: "Очистка отменена."}
		}
		key, _ := d.today()
		if err := d.store.Reset(ctx, key); err != nil {
			return d.failure(msg, "reset", err)
		}
		d.log.Warn().Int64("user_id", msg.UserID).Str("key", key).Msg("daily log cleared by user")
		d.record(msg, audit.ActionReset, key, "")
		return Response{Text: "Файл очищен."}

	case pending.AwaitingArchiveSelection:
		i, err := strconv.Atoi(text)
		if err != nil || i < 1 || i > len(prev.Archive) {
			return Response{
				Text: fmt.Sprintf("Нужен номер от 1 до %d.", len(prev.Archive)),
				Err:  apperr.Validation("archive selection %q out of range", text),
			}
		}
		f, err := d.store.Fetch(ctx, prev.Archive[i-1])
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				return Response{Text: "Файл больше не доступен.", Err: err}
			}
			return d.failure(msg, "fetch archive", err)
		}
		return Response{File: &f}

	case pending.AwaitingGrantID:
		if !d.auth.IsSuperuser(msg.UserID) {
			return Response{Text: "⛔ Команда доступна только администраторам.", Err: apperr.ErrAccessDenied}
		}
		return d.grant(ctx, msg.UserID, text)
	}
	return d.appendRecord(ctx, msg, text)
}

// failure logs err and maps it to a user-facing response.
func (d *Dispatcher) failure(msg Message, op string, err error) Response {
	ev := d.log.Error()
	if errors.Is(err, apperr.ErrValidation) {
		ev = d.log.Info()
	}
	ev.Err(err).Int64("user_id", msg.UserID).Str("op", op).Msg("operation failed")

	switch {
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		return Response{Text: "⚠️ Хранилище недоступно, попробуй позже.", Err: err}
	case errors.Is(err, apperr.ErrValidation):
		return Response{Text: "❌ Некорректный запрос.", Err: err}
	default:
		return Response{Text: "Что-то пошло не так.", Err: err}
	}
}

func (d *Dispatcher) lockUser(userID int64) func() {
	d.locksMu.Lock()
	m, ok := d.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		d.locks[userID] = m
	}
	d.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

// record appends to the audit journal. A journal failure never fails the turn.
func (d *Dispatcher) record(msg Message, action audit.Action, key, detail string) {
	if d.journal == nil {
		return
	}
	ev := audit.Event{
		Timestamp: d.now().In(d.loc),
		UserID:    msg.UserID,
		Actor:     actorName(msg),
		Action:    action,
		Key:       key,
		Detail:    detail,
	}
	if err := d.journal.Append(ev); err != nil {
		d.log.Warn().Err(err).Str("action", string(action)).Msg("audit append failed")
	}
}

func actorName(msg Message) string {
	if msg.Username != "" {
		return msg.Username
	}
	if msg.FullName != "" {
		return msg.FullName
	}
	return strconv.FormatInt(msg.UserID, 10)
}
