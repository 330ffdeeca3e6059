package log

import (
	"errors"
	"path/filepath"

	"github.com/ShiraishiHope/MultiAgents/internal/sim/world"
)

const (
	EventsPrefix = "events"
	AuditPrefix  = "audit"
)

// TickLogger writes one JSONL entry per eventful tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, EventsPrefix), EventsPrefix)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes one JSONL entry per resolved action (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, AuditPrefix), AuditPrefix)}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// TeeTick fans tick entries out to several sinks. Nil sinks are skipped.
type TeeTick []world.TickLogger

func (t TeeTick) WriteTick(e world.TickLogEntry) error {
	var errs []error
	for _, l := range t {
		if l == nil {
			continue
		}
		if err := l.WriteTick(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TeeAudit fans audit entries out to several sinks. Nil sinks are skipped.
type TeeAudit []world.AuditLogger

func (t TeeAudit) WriteAudit(e world.AuditEntry) error {
	var errs []error
	for _, l := range t {
		if l == nil {
			continue
		}
		if err := l.WriteAudit(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
