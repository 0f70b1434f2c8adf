package event

import "log/slog"

// LogNotifier writes notifications to the default slog logger.
// It is the fallback sink when no presentation layer is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	slog.Info("🔔 "+n.Message, slog.String("type", n.Type.String()), slog.String("key", n.Key))
}
