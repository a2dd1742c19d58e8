package core

import (
	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	Z zerolog.Logger
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerologLogger wraps z.
func NewZerologLogger(z zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{Z: z}
}

func (l *ZerologLogger) Debug(msg string, fields ...Field) { write(l.Z.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...Field)  { write(l.Z.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...Field)  { write(l.Z.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...Field) { write(l.Z.Error(), msg, fields) }

func write(ev *zerolog.Event, msg string, fields []Field) {
	// nil when the level is disabled
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			ev = ev.AnErr(f.Key, v)
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case uint64:
			ev = ev.Uint64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
