package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterWebhook points Telegram at webhookURL and returns the path the
// router must serve updates on.
func (b *Bot) RegisterWebhook(webhookURL string) (string, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return "", fmt.Errorf("build webhook: %w", err)
	}
	if _, err := b.s.Request(wh); err != nil {
		return "", fmt.Errorf("set webhook: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	b.log.Info().Str("path", path).Msg("webhook registered")
	return path, nil
}

// Router serves health and metrics, and updates on webhookPath when it is
// not empty.
func (b *Bot) Router(webhookPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if webhookPath != "" {
		r.Post(webhookPath, b.handleWebhook)
	}
	return r
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.log.Warn().Err(err).Msg("malformed webhook update")
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	// a started turn is not cancelled when Telegram drops the connection
	b.handleUpdate(context.WithoutCancel(r.Context()), update)
	w.WriteHeader(http.StatusOK)
}
