package vaultd

import "log/slog"

// Notifier is the fire-and-forget sink for user-facing outcome messages. It
// must be safe to call from any goroutine at any point in a request's
// lifecycle; implementations must not block on the caller.
type Notifier interface {
	Info(msg string, args ...any)
	Success(msg string, args ...any)
	Error(msg string, args ...any)
}

type slogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a Notifier that forwards messages to the supplied
// structured logger.
func NewLogNotifier(log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &slogNotifier{log: log}
}

func (n *slogNotifier) Info(msg string, args ...any) {
	n.log.Info(msg, args...)
}

func (n *slogNotifier) Success(msg string, args ...any) {
	n.log.Info(msg, append([]any{"outcome", "success"}, args...)...)
}

func (n *slogNotifier) Error(msg string, args ...any) {
	n.log.Error(msg, args...)
}
