package mixer

import (
	"fmt"
	"sync"
	"time"

	"github.com/pcpanel/mixer/dsp"
)

// ErrorHandler receives everything a Bus's render loop and a Routing
// Manager's topology mutations can't return synchronously: sampled
// underrun warnings from renderLoop, and failures from bus/channel
// lifecycle calls a caller only fired-and-forgot. Nothing on the render
// loop's hot path blocks on one of these; renderLoop only ever calls it
// between chunks, at the sampled rate underrunWarnEvery enforces.
type ErrorHandler interface {
	HandleError(error)
}

// DefaultErrorHandler prints to stdout, prefixed the way a bus underrun or
// startup failure already is by its caller (mixer: bus <id>: ...).
// Adequate for a CLI host; a real UI host installs a LoggingErrorHandler.
type DefaultErrorHandler struct{}

func (h *DefaultErrorHandler) HandleError(err error) {
	fmt.Printf("mixer error: %v\n", err)
}

// LoggingErrorHandler forwards to a caller-supplied logger and, optionally,
// chains to an underlying handler — e.g. a host that wants both its own
// structured log line and the Default handler's stdout fallback.
type LoggingErrorHandler struct {
	underlying ErrorHandler
	logger     func(error)
}

func NewLoggingErrorHandler(underlying ErrorHandler, logger func(error)) *LoggingErrorHandler {
	return &LoggingErrorHandler{underlying: underlying, logger: logger}
}

func (h *LoggingErrorHandler) HandleError(err error) {
	if h.logger != nil {
		h.logger(err)
	}
	if h.underlying != nil {
		h.underlying.HandleError(err)
	}
}

// PanicErrorHandler panics on any error, including a sampled underrun
// warning. Tests wire this in so a Bus's render loop failing loudly turns
// into a test failure instead of a silently dropped warning.
type PanicErrorHandler struct{}

func (h *PanicErrorHandler) HandleError(err error) {
	panic(fmt.Sprintf("mixer error: %v", err))
}

// State is a Mixer Bus's position in the state machine of spec.md §4.F.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// member pairs a Channel with its per-bus membership attributes.
type member struct {
	channel  *Channel
	override *AtomicFloat32
}

// Bus is a Mixer Bus (spec.md §4.F): a fan-in summing node over its member
// Input Channels, followed by master volume and soft clip, writing to one
// Sink.
type Bus struct {
	id   string
	name string

	mu       sync.Mutex
	state    State
	sinkID   *string
	sink     Sink
	sinkRate int
	order    []string
	members  map[string]*member

	masterVolume AtomicFloat32

	stopCh chan struct{}
	wg     sync.WaitGroup

	errorHandler ErrorHandler
}

// NewBus creates a Bus in state Created. Master volume defaults to unity.
func NewBus(id, name string, errorHandler ErrorHandler) *Bus {
	if errorHandler == nil {
		errorHandler = &DefaultErrorHandler{}
	}
	b := &Bus{
		id:           id,
		name:         name,
		state:        StateCreated,
		members:      make(map[string]*member),
		errorHandler: errorHandler,
	}
	b.masterVolume.Store(1)
	return b
}

func (b *Bus) ID() string   { return b.id }
func (b *Bus) Name() string { return b.name }

func (b *Bus) SetMasterVolume(v float32) { b.masterVolume.Store(v) }
func (b *Bus) MasterVolume() float32     { return b.masterVolume.Load() }

// State returns the bus's current lifecycle state.
func (b *Bus) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SinkID returns the currently configured sink device id, if any.
func (b *Bus) SinkID() *string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sinkID
}

// SetSink records the target sink device id (nil means "OS default at
// start time") and moves Created/Stopped → Configured. It does not touch
// audio; Start resolves and installs the concrete Sink.
func (b *Bus) SetSink(deviceID *string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateRunning {
		return fmt.Errorf("mixer: bus %s: cannot change sink while running, stop first", b.id)
	}
	b.sinkID = deviceID
	b.state = StateConfigured
	return nil
}

// AddChannel adds ch as a member with the given initial enabled flag and
// optional per-bus gain override. Membership may only change while the bus
// is not running (spec.md §9: membership changes to a running bus happen
// via the enabled flag, not list mutation).
func (b *Bus) AddChannel(ch *Channel, enabled bool, gainOverride *float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateRunning {
		return fmt.Errorf("mixer: bus %s: cannot add channel %s while running", b.id, ch.ID())
	}
	if _, exists := b.members[ch.ID()]; exists {
		return fmt.Errorf("mixer: bus %s: channel %s already a member", b.id, ch.ID())
	}
	ov := float32(1)
	if gainOverride != nil {
		ov = *gainOverride
	}
	b.members[ch.ID()] = &member{channel: ch, override: NewAtomicFloat32(ov)}
	b.order = append(b.order, ch.ID())
	ch.SetEnabled(enabled)
	return nil
}

// RemoveChannel drops a member. Same running-state restriction as AddChannel.
func (b *Bus) RemoveChannel(channelID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateRunning {
		return fmt.Errorf("mixer: bus %s: cannot remove channel %s while running", b.id, channelID)
	}
	if _, exists := b.members[channelID]; !exists {
		return fmt.Errorf("mixer: bus %s: channel %s is not a member", b.id, channelID)
	}
	delete(b.members, channelID)
	for i, id := range b.order {
		if id == channelID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetChannelEnabled toggles a member's real-time-visible enabled flag
// in-place; unlike Add/RemoveChannel this is safe while the bus is running.
func (b *Bus) SetChannelEnabled(channelID string, enabled bool) error {
	b.mu.Lock()
	m, ok := b.members[channelID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("mixer: bus %s: channel %s is not a member", b.id, channelID)
	}
	m.channel.SetEnabled(enabled)
	return nil
}

// SetChannelGainOverride updates a member's per-bus gain override.
func (b *Bus) SetChannelGainOverride(channelID string, v float32) error {
	b.mu.Lock()
	m, ok := b.members[channelID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("mixer: bus %s: channel %s is not a member", b.id, channelID)
	}
	m.override.Store(v)
	return nil
}

// HasEnabledMembers reports whether any member channel is currently enabled.
func (b *Bus) HasEnabledMembers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.order {
		if b.members[id].channel.Enabled() {
			return true
		}
	}
	return false
}

// Channels returns the member channels in membership order.
func (b *Bus) Channels() []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Channel, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.members[id].channel)
	}
	return out
}

func (b *Bus) channelByID(id string) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.members[id]
	if !ok {
		return nil, false
	}
	return m.channel, true
}

// Start transitions Configured → Running: it queries the sink's rate,
// starts every member channel against that rate, and launches the render
// loop. If any channel fails to start, every channel started in this
// attempt is rolled back and the bus stays Configured.
func (b *Bus) Start(sink Sink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateConfigured {
		return fmt.Errorf("mixer: bus %s: start requires state configured, got %s", b.id, b.state)
	}
	if sink == nil {
		return fmt.Errorf("mixer: bus %s: start requires a sink", b.id)
	}

	sinkRate := sink.SampleRate()
	started := make([]*Channel, 0, len(b.order))
	for _, id := range b.order {
		ch := b.members[id].channel
		if err := ch.Start(sinkRate); err != nil {
			for _, s := range started {
				s.Stop()
			}
			return fmt.Errorf("mixer: bus %s: starting channel %s: %w", b.id, id, err)
		}
		started = append(started, ch)
	}

	b.sink = sink
	b.sinkRate = sinkRate
	b.state = StateRunning
	b.stopCh = make(chan struct{})

	b.wg.Add(1)
	go b.renderLoop(sinkRate)
	return nil
}

// Stop transitions Running → Stopped: it halts the render loop, stops
// every member channel, and drops the sink. Idempotent.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.state != StateRunning {
		b.mu.Unlock()
		return
	}
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	for _, id := range b.order {
		b.members[id].channel.Stop()
	}
	b.sink = nil
	b.state = StateStopped
	b.mu.Unlock()
}

// underrunWarnEvery bounds how often renderLoop reports a member channel's
// growing underrun count to errorHandler — once per this many render
// cycles rather than every cycle, so a channel that's persistently starved
// doesn't spam the handler on every renderQuantum tick.
const underrunWarnEvery = 100

// renderLoop is the sink-device IOProc analogue of spec.md §4.F: on a
// fixed cadence it pulls resampled audio from every enabled channel, sums
// with gain and gain override, applies master volume and soft clip, and
// writes the result to the sink.
func (b *Bus) renderLoop(sinkRate int) {
	defer b.wg.Done()

	chunkFrames := sinkRate / int(time.Second/renderQuantum)
	if chunkFrames < 1 {
		chunkFrames = 1
	}
	interval := time.Duration(float64(chunkFrames) / float64(sinkRate) * float64(time.Second))
	if interval <= 0 {
		interval = renderQuantum
	}

	out := make([]float32, chunkFrames*2)
	scratch := make([]float32, chunkFrames*2)
	lastUnderruns := make(map[string]uint64)
	cycle := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			for i := range out {
				out[i] = 0
			}

			b.mu.Lock()
			order := b.order
			members := b.members
			sink := b.sink
			b.mu.Unlock()

			cycle++
			checkUnderruns := cycle%underrunWarnEvery == 0

			for _, id := range order {
				m := members[id]
				if !m.channel.Enabled() {
					continue
				}
				m.channel.ReadOutput(scratch, chunkFrames)
				g := m.channel.Gain() * m.override.Load()
				for i := range out {
					out[i] += scratch[i] * g
				}

				if checkUnderruns {
					u := m.channel.Underruns()
					if prev, ok := lastUnderruns[id]; ok && u > prev {
						b.errorHandler.HandleError(fmt.Errorf(
							"mixer: bus %s: channel %s: %d underruns in the last %d cycles",
							b.id, id, u-prev, underrunWarnEvery))
					}
					lastUnderruns[id] = u
				}
			}

			mv := b.masterVolume.Load()
			for i := range out {
				out[i] *= mv
			}
			dsp.SoftClipBuffer(out)

			if sink != nil {
				sink.WriteFrames(out)
			}
		}
	}
}
