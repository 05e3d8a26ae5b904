package presence

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	presenceerrors "github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultEmitTimeout bounds a single emitter call.
const DefaultEmitTimeout = 5 * time.Second

// Notice is what an emitter receives for an accepted transition.
type Notice struct {
	Event   models.TransitionEvent
	Profile models.Profile
	Title   string
	Message string
}

// Emitter performs one effect.
type Emitter interface {
	Name() string
	Emit(ctx context.Context, n Notice) error
}

// Clearer is implemented by emitters that show steady state and need to know
// when it ends.
type Clearer interface {
	Clear(ctx context.Context, c models.Clearance) error
}

// ProfileLookup resolves participant ids without blocking.
type ProfileLookup interface {
	Lookup(participantID string) models.Profile
}

// Stats counts what a Dispatch or Clear call did.
type Stats struct {
	Accepted   int `json:"accepted"`
	Suppressed int `json:"suppressed"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}

// Add accumulates another Stats.
func (s *Stats) Add(o Stats) {
	s.Accepted += o.Accepted
	s.Suppressed += o.Suppressed
	s.Delivered += o.Delivered
	s.Failed += o.Failed
}

type registration struct {
	channel Channel
	emitter Emitter
}

// Dispatcher routes accepted transitions to the emitters registered on each
// channel. Emitter failures are logged and counted, never returned.
type Dispatcher struct {
	policy   *Policy
	profiles ProfileLookup
	logger   *logrus.Entry

	mu       sync.RWMutex
	emitters []registration
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. profiles may be nil, in which case
// participants are labeled by id.
func NewDispatcher(policy *Policy, profiles ProfileLookup, logger *logrus.Entry) *Dispatcher {
	if policy == nil {
		policy = NewPolicy()
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Dispatcher{
		policy:   policy,
		profiles: profiles,
		logger:   logger,
		timeout:  DefaultEmitTimeout,
	}
}

// Policy returns the policy the dispatcher consults.
func (d *Dispatcher) Policy() *Policy {
	return d.policy
}

// Register adds an emitter to a channel. Emitters run in registration order.
func (d *Dispatcher) Register(ch Channel, em Emitter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emitters = append(d.emitters, registration{channel: ch, emitter: em})
}

// SetTimeout changes the per-emit timeout. Zero or negative disables it.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = timeout
}

func (d *Dispatcher) snapshot() ([]registration, time.Duration) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	regs := make([]registration, len(d.emitters))
	copy(regs, d.emitters)
	return regs, d.timeout
}

func (d *Dispatcher) lookup(participantID string) models.Profile {
	if d.profiles == nil {
		return models.Profile{ParticipantID: participantID}
	}
	p := d.profiles.Lookup(participantID)
	if p.ParticipantID == "" {
		p.ParticipantID = participantID
	}
	return p
}

// Dispatch delivers each event to the channels the policy allows, in order.
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.TransitionEvent) Stats {
	var stats Stats
	if len(events) == 0 {
		return stats
	}
	regs, timeout := d.snapshot()

	for _, ev := range events {
		profile := d.lookup(ev.Identity.ParticipantID)
		decision := d.policy.Decide(ev, profile)
		if !decision.Log && !decision.Notify && !decision.Indicator {
			stats.Suppressed++
			if decision.Ignored {
				d.logger.WithField("identity", ev.Identity.String()).Debug("Transition ignored")
			}
			continue
		}
		stats.Accepted++

		notice := Notice{
			Event:   ev,
			Profile: profile,
			Title:   decision.Title,
			Message: decision.Message,
		}
		for _, reg := range regs {
			if !decision.Allows(reg.channel) {
				continue
			}
			err := d.call(ctx, timeout, reg, func(ctx context.Context) error {
				return reg.emitter.Emit(ctx, notice)
			})
			if err != nil {
				stats.Failed++
				continue
			}
			stats.Delivered++
		}
	}
	return stats
}

// Clear forwards ended steady states to indicator emitters that implement
// Clearer. Nothing is forwarded while the indicator channel is disabled.
func (d *Dispatcher) Clear(ctx context.Context, cleared []models.Clearance) Stats {
	var stats Stats
	if len(cleared) == 0 || !d.policy.ChannelEnabled(ChannelIndicator) {
		return stats
	}
	regs, timeout := d.snapshot()

	for _, c := range cleared {
		c := c
		for _, reg := range regs {
			if reg.channel != ChannelIndicator {
				continue
			}
			clearer, ok := reg.emitter.(Clearer)
			if !ok {
				continue
			}
			err := d.call(ctx, timeout, reg, func(ctx context.Context) error {
				return clearer.Clear(ctx, c)
			})
			if err != nil {
				stats.Failed++
				continue
			}
			stats.Delivered++
		}
	}
	return stats
}

// call runs fn with the emit timeout and turns errors and panics into a
// logged CHANNEL_FAILED error.
func (d *Dispatcher) call(ctx context.Context, timeout time.Duration, reg registration, fn func(context.Context) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = presenceerrors.ChannelFailed(string(reg.channel), reg.emitter.Name(), err)
			d.logger.WithError(err).WithFields(logrus.Fields{
				"channel": reg.channel,
				"emitter": reg.emitter.Name(),
			}).Warn("Effect failed")
		}
	}()

	return fn(ctx)
}
