package kioku

import "go.uber.org/zap"

// Severity classifies an observer notification.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Observer receives out-of-band notifications about store trouble: lock
// contention and compromise, corrupt files, capacity limits, failed writes.
// Implementations must not block; a panicking observer is contained and
// never fails the operation that triggered it.
type Observer interface {
	Notify(severity Severity, msg string, cause error)
}

// NopObserver ignores all notifications. It is the default.
type NopObserver struct{}

func (NopObserver) Notify(Severity, string, error) {}

type zapObserver struct {
	logger *zap.Logger
}

// NewZapObserver returns an Observer that forwards notifications to the
// given logger at the matching level.
func NewZapObserver(l *zap.Logger) Observer {
	return &zapObserver{logger: l}
}

func (o *zapObserver) Notify(severity Severity, msg string, cause error) {
	switch severity {
	case SeverityError:
		o.logger.Error(msg, zap.Error(cause))
	default:
		o.logger.Warn(msg, zap.Error(cause))
	}
}
