package weatheralert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sznuper/cronpush/internal/notify"
)

// Outcome of one agent run.
type Outcome string

const (
	OutcomeSent       Outcome = "sent"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeDryRun     Outcome = "dry_run"
	OutcomeSendFailed Outcome = "send_failed"
)

// Agent sends the scheduled message once per run.
type Agent struct {
	Creds     Credentials
	StatePath string
	Retention time.Duration
	DryRun    bool
	Logger    *slog.Logger

	// Now and Send default to time.Now and notify.Send.
	Now  func() time.Time
	Send func(notify.Target) error
}

// Run builds the message, skips it when the cache already holds it, sends it
// and records the delivery. A failed send is logged and reported as
// OutcomeSendFailed with a nil error; the cache is left untouched so the
// runner sees no change.
func (a *Agent) Run(ctx context.Context) (Outcome, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	send := notify.Send
	if a.Send != nil {
		send = a.Send
	}
	retention := a.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("starting scheduled telegram test alert", "redemet_key", a.Creds.RedemetKey != "")

	cache, err := LoadCache(a.StatePath)
	if err != nil {
		return "", err
	}

	t := now()
	msg := Message(t)
	key := Key(msg)

	if cache.Seen(key) {
		logger.Info("message already sent, skipping", "key", key[:12])
		return OutcomeDuplicate, nil
	}

	target := notify.Target{
		ServiceName: "telegram",
		URL:         a.Creds.TelegramURL(),
		Message:     msg,
	}
	if err := notify.Validate(target); err != nil {
		return "", err
	}

	if a.DryRun {
		logger.Info("dry run, not sending", "preview", preview(msg))
		return OutcomeDryRun, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	logger.Info("sending message to telegram", "preview", preview(msg))
	if err := send(target); err != nil {
		logger.Error("sending message to telegram failed", "error", err)
		return OutcomeSendFailed, nil
	}

	pruned := cache.Prune(t, retention)
	cache.Record(key, t)
	if err := cache.Save(a.StatePath); err != nil {
		return OutcomeSent, fmt.Errorf("message sent but cache not saved: %w", err)
	}

	logger.Info("message sent", "key", key[:12], "pruned", pruned, "cached", len(cache.Sent))
	return OutcomeSent, nil
}

func preview(msg string) string {
	r := []rune(msg)
	if len(r) > 100 {
		return string(r[:100]) + "..."
	}
	return msg
}
