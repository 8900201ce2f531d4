package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"changelog_emitter/internal/event"

	"github.com/rs/zerolog"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook posts matched events as JSON to an HTTP endpoint.
type Webhook struct {
	URL    string
	Client *http.Client
	Log    zerolog.Logger
}

func NewWebhook(url string, logger zerolog.Logger) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: defaultWebhookTimeout},
		Log:    logger,
	}
}

func (w *Webhook) Handle(ctx context.Context, _ []byte, ev *event.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := w.Client.Do(req)
	duration := time.Since(start)
	if err != nil {
		w.Log.Error().Err(err).Str("url", w.URL).Str("op", ev.Op.String()).
			Str("table", ev.Table).Interface("key", ev.RowKey).Msg("webhook failed")
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 400 {
		w.Log.Error().Int("status", resp.StatusCode).Dur("duration", duration).Str("url", w.URL).
			Str("response", string(body)).RawJSON("payload", payload).Msg("webhook rejected")
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	w.Log.Info().Int("status", resp.StatusCode).Dur("duration", duration).Str("url", w.URL).
		Str("op", ev.Op.String()).Str("table", ev.Table).Interface("key", ev.RowKey).Msg("webhook delivered")
	return nil
}
