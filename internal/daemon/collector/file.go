package collector

import (
	"context"
	"io"
	stdlog "log"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/internal/daemon/store"
	"github.com/grovetools/presence/pkg/models"
)

// FileCollector reads ticks from a JSON Lines file, one tick per line.
type FileCollector struct {
	path      string
	follow    bool
	fromStart bool
	logger    *logrus.Entry
}

// NewFileCollector creates a collector for path. With follow set it keeps
// reading appended lines, surviving truncation and rotation; fromStart
// controls whether an already existing file is replayed first.
func NewFileCollector(path string, follow, fromStart bool, logger *logrus.Entry) *FileCollector {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FileCollector{path: path, follow: follow, fromStart: fromStart || !follow, logger: logger}
}

// Name returns the collector's name.
func (c *FileCollector) Name() string { return "file" }

// Run emits every tick in the file until EOF, or until ctx ends when following.
func (c *FileCollector) Run(ctx context.Context, _ *store.Store, updates chan<- store.Update) error {
	return c.Scan(ctx, func(tick models.Tick) bool {
		return send(ctx, updates, c.Name(), tick)
	})
}

// Scan calls fn for each decodable tick. Malformed lines are logged and
// skipped. It stops when fn returns false.
func (c *FileCollector) Scan(ctx context.Context, fn func(models.Tick) bool) error {
	whence := io.SeekEnd
	if c.fromStart {
		whence = io.SeekStart
	}
	t, err := tail.TailFile(c.path, tail.Config{
		Follow:    c.follow,
		ReOpen:    c.follow,
		MustExist: !c.follow,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return errors.SourceFailed(c.path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				if err := t.Wait(); err != nil {
					return errors.SourceFailed(c.path, err)
				}
				return nil
			}
			lineNo++
			if line.Err != nil {
				c.logger.WithError(line.Err).WithField("line", lineNo).Warn("Failed to read tick line")
				continue
			}
			tick, ok, err := DecodeTick(c.path, []byte(line.Text))
			if err != nil {
				c.logger.WithError(err).WithField("line", lineNo).Warn("Skipping malformed tick")
				continue
			}
			if !ok {
				continue
			}
			if !fn(tick) {
				return nil
			}
		}
	}
}
