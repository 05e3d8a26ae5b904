// Package channels implements the effect emitters the dispatcher routes
// accepted presence transitions to.
package channels

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grovetools/presence/pkg/presence"
	"github.com/sirupsen/logrus"
)

// TimestampLayout renders log timestamps as MM/DD/YYYY, HH:MM:SS (24h).
const TimestampLayout = "01/02/2006, 15:04:05"

// LogEmitter writes the presence log. Lines go to the writer when one is
// set and to the logger otherwise.
type LogEmitter struct {
	mu            sync.Mutex
	out           io.Writer
	logger        *logrus.Entry
	showTimestamp bool
	now           func() time.Time
}

// NewLogEmitter creates a presence log emitter.
func NewLogEmitter(out io.Writer, logger *logrus.Entry, showTimestamp bool) *LogEmitter {
	return &LogEmitter{
		out:           out,
		logger:        logger,
		showTimestamp: showTimestamp,
		now:           time.Now,
	}
}

func (l *LogEmitter) Name() string { return "log" }

// Line formats a notice as "{label}: {action}" with an optional timestamp.
func (l *LogEmitter) Line(n presence.Notice) string {
	line := fmt.Sprintf("%s: %s", n.Title, n.Message)
	if l.showTimestamp {
		line = fmt.Sprintf("[%s] %s", l.now().Format(TimestampLayout), line)
	}
	return line
}

// SetShowTimestamp toggles the timestamp prefix.
func (l *LogEmitter) SetShowTimestamp(show bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showTimestamp = show
}

func (l *LogEmitter) Emit(_ context.Context, n presence.Notice) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := l.Line(n)
	if l.out != nil {
		_, err := fmt.Fprintln(l.out, line)
		return err
	}
	if l.logger != nil {
		l.logger.WithFields(logrus.Fields{
			"identity": n.Event.Identity.String(),
			"state":    n.Event.To,
		}).Info(line)
	}
	return nil
}
