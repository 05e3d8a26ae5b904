package presence

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/presence/pkg/models"
	"github.com/samber/lo"
)

// Channel is an effect channel a transition can be routed to.
type Channel string

const (
	ChannelLog       Channel = "log"
	ChannelNotify    Channel = "notify"
	ChannelIndicator Channel = "indicator"
)

// Channels lists every channel in dispatch order.
var Channels = []Channel{ChannelLog, ChannelNotify, ChannelIndicator}

// Decision is the policy's verdict for one transition.
type Decision struct {
	Log       bool
	Notify    bool
	Indicator bool
	Ignored   bool

	// Title is the participant label, Message the action text.
	Title   string
	Message string
}

// Allows reports whether the decision fires the given channel.
func (d Decision) Allows(ch Channel) bool {
	switch ch {
	case ChannelLog:
		return d.Log
	case ChannelNotify:
		return d.Notify
	case ChannelIndicator:
		return d.Indicator
	}
	return false
}

// Settings is the serializable form of a policy.
type Settings struct {
	Channels       map[Channel]bool       `json:"channels"`
	IgnoredNames   []string               `json:"ignored_names"`
	AllowedTypes   []models.PresenceState `json:"allowed_types"` // nil enables every type
	NotifyCooldown string                 `json:"notify_cooldown,omitempty"`
}

type cooldownKey struct {
	identity models.IdentityKey
	state    models.PresenceState
}

// Policy decides which channels fire for a transition. All mutators are safe
// for concurrent use and apply from the next Decide call on.
type Policy struct {
	mu           sync.RWMutex
	enabled      map[Channel]bool
	ignored      map[string]struct{}
	allowed      map[models.PresenceState]struct{}
	cooldown     time.Duration
	lastNotified map[cooldownKey]time.Time
	now          func() time.Time
}

// NewPolicy returns a policy with every channel and type enabled and an empty
// ignore list.
func NewPolicy() *Policy {
	p := &Policy{
		enabled:      make(map[Channel]bool, len(Channels)),
		ignored:      make(map[string]struct{}),
		lastNotified: make(map[cooldownKey]time.Time),
		now:          time.Now,
	}
	for _, ch := range Channels {
		p.enabled[ch] = true
	}
	return p
}

// SetChannelEnabled toggles a single channel.
func (p *Policy) SetChannelEnabled(ch Channel, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled[ch] = enabled
}

// ChannelEnabled reports whether a channel is enabled.
func (p *Policy) ChannelEnabled(ch Channel) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled[ch]
}

// AnyChannelEnabled reports whether at least one channel is enabled.
func (p *Policy) AnyChannelEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.SomeBy(Channels, func(ch Channel) bool { return p.enabled[ch] })
}

// SetIgnoreList replaces the ignore list. Entries match display names,
// usernames and conversation titles exactly.
func (p *Policy) SetIgnoreList(names []string) {
	cleaned := lo.Uniq(lo.FilterMap(names, func(n string, _ int) (string, bool) {
		n = strings.TrimSpace(n)
		return n, n != ""
	}))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignored = make(map[string]struct{}, len(cleaned))
	for _, n := range cleaned {
		p.ignored[n] = struct{}{}
	}
}

// SetTypeAllowList restricts which states may be logged or notified. A nil
// slice enables every state; an empty non-nil slice enables none.
func (p *Policy) SetTypeAllowList(states []models.PresenceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if states == nil {
		p.allowed = nil
		return
	}
	p.allowed = make(map[models.PresenceState]struct{}, len(states))
	for _, s := range states {
		if s.Valid() {
			p.allowed[s] = struct{}{}
		}
	}
}

// SetNotifyCooldown suppresses repeat notifications for the same identity and
// state inside the window. Zero disables the window.
func (p *Policy) SetNotifyCooldown(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d < 0 {
		d = 0
	}
	p.cooldown = d
	p.lastNotified = make(map[cooldownKey]time.Time)
}

// Settings returns a copy of the current configuration.
func (p *Policy) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Settings{
		Channels:     make(map[Channel]bool, len(p.enabled)),
		IgnoredNames: lo.Keys(p.ignored),
	}
	for ch, on := range p.enabled {
		s.Channels[ch] = on
	}
	sort.Strings(s.IgnoredNames)
	if p.allowed != nil {
		s.AllowedTypes = lo.Filter(models.AllStates, func(st models.PresenceState, _ int) bool {
			_, ok := p.allowed[st]
			return ok
		})
	}
	if p.cooldown > 0 {
		s.NotifyCooldown = p.cooldown.String()
	}
	return s
}

// Apply replaces the whole configuration. An unparsable cooldown leaves the
// window disabled and is returned as an error after everything else applied.
func (p *Policy) Apply(s Settings) error {
	for _, ch := range Channels {
		on, ok := s.Channels[ch]
		if !ok {
			continue
		}
		p.SetChannelEnabled(ch, on)
	}
	p.SetIgnoreList(s.IgnoredNames)
	p.SetTypeAllowList(s.AllowedTypes)

	if s.NotifyCooldown == "" {
		p.SetNotifyCooldown(0)
		return nil
	}
	d, err := time.ParseDuration(s.NotifyCooldown)
	if err != nil {
		p.SetNotifyCooldown(0)
		return err
	}
	p.SetNotifyCooldown(d)
	return nil
}

// IsIgnored reports whether any of the given identifiers is on the ignore list.
func (p *Policy) IsIgnored(identifiers ...string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isIgnoredLocked(identifiers...)
}

func (p *Policy) isIgnoredLocked(identifiers ...string) bool {
	for _, id := range identifiers {
		if id == "" {
			continue
		}
		if _, ok := p.ignored[id]; ok {
			return true
		}
	}
	return false
}

// Decide computes which channels fire for the event and the message to show.
func (p *Policy) Decide(ev models.TransitionEvent, profile models.Profile) Decision {
	message, ok := Action(ev.To, ev.ConversationTitle)
	if !ok {
		return Decision{}
	}
	d := Decision{Title: profile.Label(), Message: message}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isIgnoredLocked(profile.DisplayName, profile.Username, ev.ConversationTitle) {
		d.Ignored = true
		return d
	}

	typeAllowed := true
	if p.allowed != nil {
		_, typeAllowed = p.allowed[ev.To]
	}

	d.Log = p.enabled[ChannelLog] && typeAllowed
	d.Indicator = p.enabled[ChannelIndicator]
	d.Notify = p.enabled[ChannelNotify] && typeAllowed && p.passCooldownLocked(ev)
	return d
}

func (p *Policy) passCooldownLocked(ev models.TransitionEvent) bool {
	if p.cooldown <= 0 {
		return true
	}
	key := cooldownKey{identity: ev.Identity, state: ev.To}
	now := p.now()
	if last, ok := p.lastNotified[key]; ok && now.Sub(last) < p.cooldown {
		return false
	}
	p.lastNotified[key] = now
	return true
}
