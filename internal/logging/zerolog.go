package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger over github.com/rs/zerolog, writing a
// human-readable console stream to os.Stderr (when the caller enables it)
// and always writing newline-delimited JSON, matching the console+JSON
// dual-writer shape the rest of this codebase's ambient stack favors.
type ZerologLogger struct {
	logger zerolog.Logger
	level  Level
	closer io.Closer
}

// NewZerologLogger builds a Logger writing JSON lines to w (typically the
// log file) and, when console is true, also a human-readable stream to
// os.Stderr. minLevel events below this level are dropped before they ever
// reach zerolog.
func NewZerologLogger(w io.Writer, console bool, minLevel Level) *ZerologLogger {
	var out io.Writer = w
	if console {
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		out = zerolog.MultiLevelWriter(w, cw)
	}

	zl := zerolog.New(out).With().Timestamp().Logger()

	var closer io.Closer
	if c, ok := w.(io.Closer); ok {
		closer = c
	}

	return &ZerologLogger{logger: zl, level: minLevel, closer: closer}
}

func (l *ZerologLogger) Log(event Event) {
	if event.Level < l.level {
		return
	}

	var ev *zerolog.Event
	switch event.Level {
	case LevelDebug:
		ev = l.logger.Debug()
	case LevelWarn:
		ev = l.logger.Warn()
	case LevelError:
		ev = l.logger.Error()
	default:
		ev = l.logger.Info()
	}

	if event.Service != "" {
		ev = ev.Str("service", event.Service)
	}
	if event.EventType != "" {
		ev = ev.Str("event", event.EventType)
	}
	for k, v := range event.Metadata {
		ev = ev.Interface(k, v)
	}
	ev.Msg(event.Message)
}

func (l *ZerologLogger) Debug(service, eventType, message string, meta map[string]any) {
	l.Log(Event{Timestamp: time.Now(), Level: LevelDebug, Service: service, EventType: eventType, Message: message, Metadata: meta})
}

func (l *ZerologLogger) Info(service, eventType, message string, meta map[string]any) {
	l.Log(Event{Timestamp: time.Now(), Level: LevelInfo, Service: service, EventType: eventType, Message: message, Metadata: meta})
}

func (l *ZerologLogger) Warn(service, eventType, message string, meta map[string]any) {
	l.Log(Event{Timestamp: time.Now(), Level: LevelWarn, Service: service, EventType: eventType, Message: message, Metadata: meta})
}

func (l *ZerologLogger) Error(service, eventType, message string, meta map[string]any) {
	l.Log(Event{Timestamp: time.Now(), Level: LevelError, Service: service, EventType: eventType, Message: message, Metadata: meta})
}

func (l *ZerologLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
