package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dailylog-bot/internal/analytics"
	"dailylog-bot/internal/apperr"
	"dailylog-bot/internal/audit"
	"dailylog-bot/internal/records"
)

// denied rejects an unknown user. Superusers hear about each user once per
// process, with a button to grant access.
func (d *Dispatcher) denied(msg Message) Response {
	d.log.Warn().Int64("user_id", msg.UserID).Str("username", msg.Username).Msg("unauthorized access attempt")
	resp := Response{
		Text: fmt.Sprintf("⛔ Нет доступа. Ваш ID: %d. Запрос отправлен администратору.", msg.UserID),
		Err:  apperr.ErrAccessDenied,
	}

	d.record(msg, audit.ActionDenied, "", "")

	d.requestedMu.Lock()
	first := !d.requested[msg.UserID]
	d.requested[msg.UserID] = true
	d.requestedMu.Unlock()
	if !first {
		return resp
	}

	who := strconv.FormatInt(msg.UserID, 10)
	if name := actorName(msg); name != who {
		who = fmt.Sprintf("%s (%d)", name, msg.UserID)
	}
	for _, su := range d.auth.Superusers() {
		resp.Notices = append(resp.Notices, Notice{
			UserID:  su,
			Text:    fmt.Sprintf("Пользователь %s хочет пользоваться ботом.", who),
			GrantID: msg.UserID,
		})
	}
	return resp
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("malformed user id %q", s)
	}
	return id, nil
}

func (d *Dispatcher) grant(ctx context.Context, actor int64, arg string) Response {
	id, err := parseUserID(arg)
	if err != nil {
		return Response{Text: "Нужен числовой ID пользователя.", Err: err}
	}
	if err := d.auth.Grant(ctx, id); err != nil {
		return d.failure(Message{UserID: actor}, "grant", err)
	}
	d.requestedMu.Lock()
	delete(d.requested, id)
	d.requestedMu.Unlock()

	d.log.Info().Int64("user_id", id).Int64("by", actor).Msg("access granted")
	d.record(Message{UserID: actor}, audit.ActionGrant, "", strconv.FormatInt(id, 10))
	return Response{
		Text:    fmt.Sprintf("Доступ выдан пользователю %d.", id),
		Notices: []Notice{{UserID: id, Text: "✅ Доступ к боту открыт.\n\n" + helpText}},
	}
}

func (d *Dispatcher) revoke(ctx context.Context, actor int64, arg string) Response {
	id, err := parseUserID(arg)
	if err != nil {
		return Response{Text: "Использование: /revoke <ID>", Err: err}
	}
	if err := d.auth.Revoke(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return Response{Text: "Нельзя отозвать доступ у администратора.", Err: err}
		}
		return d.failure(Message{UserID: actor}, "revoke", err)
	}
	d.pending.Take(id)
	d.log.Info().Int64("user_id", id).Int64("by", actor).Msg("access revoked")
	d.record(Message{UserID: actor}, audit.ActionRevoke, "", strconv.FormatInt(id, 10))
	return Response{Text: fmt.Sprintf("Доступ пользователя %d отозван.", id)}
}

func (d *Dispatcher) users() Response {
	return Response{Text: fmt.Sprintf("Администраторы: %s\nДоступ: %s",
		joinIDs(d.auth.Superusers()), joinIDs(d.auth.List()))}
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "—"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// DailyReport counts today's records and addresses the total to every
// superuser. It never creates the day's log.
func (d *Dispatcher) DailyReport(ctx context.Context) ([]Notice, error) {
	key, now := d.today()
	n, err := d.store.Count(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", key, err)
	}
	text := fmt.Sprintf("Итог за %s: записей %d", now.Format("2006-01-02"), n)
	if d.journal != nil {
		events, err := d.journal.LoadDay(now)
		if err != nil {
			d.log.Warn().Err(err).Msg("audit load failed")
		} else {
			text += "\n" + analytics.AnalyzeDay(events, now).Summary()
		}
	}
	var out []Notice
	for _, su := range d.auth.Superusers() {
		out = append(out, Notice{UserID: su, Text: text})
	}
	return out, nil
}

var _ RecordStore = (*records.Store)(nil)
