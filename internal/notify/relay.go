package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

type Notification struct {
	Kind    Kind
	Message string
	At      time.Time
}

// Sink receives every notification the relay emits.
const maxSanitizePasses = 4

type Sink func(Notification)

// Relay fans transient user-facing messages out to its sinks. Messages are
// stripped of markup first since some of them come from the server.
type Relay struct {
	policy *bluemonday.Policy
	sinks  []Sink
}

func NewRelay(sinks ...Sink) *Relay {
	return &Relay{
		policy: bluemonday.StrictPolicy(),
		sinks:  sinks,
	}
}

func (r *Relay) Notify(kind Kind, message string) {

	n := Notification{
		Kind:    kind,
		Message: r.sanitize(message),
		At:      time.Now(),
	}

	for _, sink := range r.sinks {
		sink(n)
	}
}

// sanitize strips markup until the text stops changing, so entity-encoded or
// nested tags cannot come back to life once unescaped.
func (r *Relay) sanitize(message string) string {

	clean := html.UnescapeString(message)

	for range maxSanitizePasses {
		// bluemonday escapes entities; unescape so plain text stays plain
		next := html.UnescapeString(r.policy.Sanitize(clean))
		if next == clean {
			return strings.TrimSpace(clean)
		}
		clean = next
	}

	// still changing: keep the escaped form rather than risk live markup
	return strings.TrimSpace(r.policy.Sanitize(clean))
}

func LogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}

	return func(n Notification) {
		level := slog.LevelInfo
		if n.Kind == KindError {
			level = slog.LevelWarn
		}

		logger.Log(context.Background(), level, "Notification", slog.String("kind", string(n.Kind)), slog.String("message", n.Message))
	}
}

var icons = map[Kind]string{
	KindSuccess: "✅",
	KindError:   "❌",
	KindInfo:    "ℹ️",
}

// WriterSink prints one line per notification, for terminals.
func WriterSink(w io.Writer) Sink {
	return func(n Notification) {
		fmt.Fprintf(w, "%s %s\n", icons[n.Kind], n.Message)
	}
}
