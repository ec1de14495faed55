package asp

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// MessageCode identifies a diagnostic emitted through a Logger. The set is
// closed: non-negative values mirror the ErrorCode categories, negative
// values are advisory warnings that never abort solving.
type MessageCode int

const (
	// MessageOperationUndefined warns about an undefined arithmetic
	// operation; the offending rule instance is dropped.
	MessageOperationUndefined MessageCode = -1

	// MessageAtomUndefined warns about a body atom that no rule defines;
	// the atom is fixed to false.
	MessageAtomUndefined MessageCode = -2

	// MessageFileIncluded warns that the same file was included more than
	// once; later inclusions are ignored.
	MessageFileIncluded MessageCode = -3

	// MessageVariableUnbounded warns about an unbounded CSP domain.
	MessageVariableUnbounded MessageCode = -4

	// MessageGlobalVariable warns about a global variable inside an
	// aggregate element tuple.
	MessageGlobalVariable MessageCode = -5
)

// String returns a short identifier for the message code, suitable for
// prefixing log lines.
func (c MessageCode) String() string {
	switch c {
	case MessageOperationUndefined:
		return "operation undefined"
	case MessageAtomUndefined:
		return "atom undefined"
	case MessageFileIncluded:
		return "file included"
	case MessageVariableUnbounded:
		return "variable unbounded"
	case MessageGlobalVariable:
		return "global variable"
	default:
		if c >= 0 {
			return ErrorCode(c).String()
		}
		return "invalid"
	}
}

// IsWarning reports whether the code is advisory. Warnings allow solving to
// continue; error codes accompany a failing call.
func (c MessageCode) IsWarning() bool { return c < 0 }

// Logger receives diagnostics from a Control. Implementations must be safe
// for concurrent use; grounding and solving may log from worker goroutines.
type Logger func(code MessageCode, message string)

// messageSink wraps a Logger with the message-count cutoff required by the
// Control contract: after limit messages, further invocations are dropped.
type messageSink struct {
	mu    sync.Mutex
	log   Logger
	limit uint
	seen  uint
}

func newMessageSink(log Logger, limit uint) *messageSink {
	if log == nil {
		log = DefaultLogger(nil)
	}
	return &messageSink{log: log, limit: limit}
}

// report forwards a message unless the cutoff has been reached.
func (s *messageSink) report(code MessageCode, format string, args ...interface{}) {
	s.mu.Lock()
	if s.limit > 0 && s.seen >= s.limit {
		s.mu.Unlock()
		return
	}
	s.seen++
	log := s.log
	s.mu.Unlock()
	log(code, fmt.Sprintf(format, args...))
}

// DefaultLogger returns a Logger backed by logrus. Warnings are logged at
// warning level, error codes at error level, each tagged with the message
// code. A nil entry uses the logrus standard logger.
func DefaultLogger(base *logrus.Logger) Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return func(code MessageCode, message string) {
		entry := base.WithField("code", code.String())
		if code.IsWarning() {
			entry.Warn(message)
		} else {
			entry.Error(message)
		}
	}
}
