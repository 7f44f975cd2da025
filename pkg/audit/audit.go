// pkg/audit/audit.go
package audit

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Event is one immutable audit record. Tenant and correlation ids are
// promoted to fixed fields; everything else a call site contributes lands in
// Extra.
type Event struct {
	Timestamp     string         `json:"timestamp"`
	Level         string         `json:"level"`
	Message       string         `json:"message"`
	TenantID      string         `json:"tenant_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// Fields carries the structured key/value pairs attached to an event. The
// keys "tenant_id" and "correlation_id" are reserved and lifted onto the
// event itself.
type Fields map[string]any

const DefaultBufferSize = 1000

// Store is a bounded, thread-safe ring of the most recent events. Appends
// evict the oldest entry once capacity is reached.
type Store struct {
	mu     sync.Mutex
	events []Event
	max    int
}

func NewStore(max int) *Store {
	if max <= 0 {
		max = DefaultBufferSize
	}
	return &Store{max: max}
}

func (s *Store) Append(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if len(s.events) > s.max {
		s.events = s.events[len(s.events)-s.max:]
	}
}

// List returns up to limit events, most recent first. The result is a
// snapshot; concurrent appends do not mutate it.
func (s *Store) List(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// Len reports the current number of buffered events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Logger records audit events: every event is appended to the store and
// emitted as one self-contained JSON line. There is no ambient global
// instance; components receive a *Logger explicitly.
type Logger struct {
	z     *zap.Logger
	store *Store
	now   func() time.Time
}

// New builds a Logger over the given store, writing JSON lines to w
// (os.Stdout when nil).
func New(store *Store, w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	enc := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     utcTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.InfoLevel)
	return &Logger{z: zap.New(core), store: store, now: time.Now}
}

func utcTimeEncoder(t time.Time, e zapcore.PrimitiveArrayEncoder) {
	e.AppendString(t.UTC().Format(time.RFC3339Nano))
}

func (l *Logger) Info(msg string, fields Fields)  { l.log(zapcore.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields Fields)  { l.log(zapcore.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields Fields) { l.log(zapcore.ErrorLevel, msg, fields) }

// Store exposes the underlying ring buffer for reporting surfaces.
func (l *Logger) Store() *Store { return l.store }

func (l *Logger) log(level zapcore.Level, msg string, fields Fields) {
	e := Event{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     level.CapitalString(),
		Message:   msg,
	}
	var extra map[string]any
	for k, v := range fields {
		switch k {
		case "tenant_id":
			e.TenantID, _ = v.(string)
		case "correlation_id":
			e.CorrelationID, _ = v.(string)
		default:
			if extra == nil {
				extra = make(map[string]any, len(fields))
			}
			extra[k] = v
		}
	}
	e.Extra = extra
	l.Record(level, e)
}

// Record appends a fully-shaped event and mirrors it to the JSON line sink.
// It never fails for a well-formed event.
func (l *Logger) Record(level zapcore.Level, e Event) {
	if l.store != nil {
		l.store.Append(e)
	}
	eventsTotal.WithLabelValues(e.Level).Inc()

	zf := make([]zap.Field, 0, len(e.Extra)+2)
	if e.TenantID != "" {
		zf = append(zf, zap.String("tenant_id", e.TenantID))
	}
	if e.CorrelationID != "" {
		zf = append(zf, zap.String("correlation_id", e.CorrelationID))
	}
	for k, v := range e.Extra {
		zf = append(zf, zap.Any(k, v))
	}
	if ce := l.z.Check(level, e.Message); ce != nil {
		ce.Write(zf...)
	}
}
