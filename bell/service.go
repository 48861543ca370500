// Package bell is the caller-facing surface of the notification core: one
// long-lived service instance owning the single connection, the dedup window,
// the dispatcher, and the listener fan-out layer.
package bell

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderbell-io/orderbell-go/alert"
	"github.com/orderbell-io/orderbell-go/channel"
	"github.com/orderbell-io/orderbell-go/dedup"
	"github.com/orderbell-io/orderbell-go/settings"
	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

// HistoryLimit bounds the in-memory recent-event window.
const HistoryLimit = 100

// Options configure a Service.
type Options struct {
	ServerURL      string
	SettingsDBPath string
	Profile        string
	BackoffBase    time.Duration
	MaxAttempts    int
	PingInterval   time.Duration

	// Platform capabilities. Nil values fall back to no-ops (tones,
	// speech) or logging (toasts), keeping the core runnable headless.
	Tones   alert.TonePlayer
	Speaker alert.Speaker
	Toaster alert.Toaster
}

type listener struct {
	id      string
	onEvent func(types.EnrichedEvent)
	onConn  func(types.ConnectionState)
}

// Service wires the pipeline: connection frames -> deduplicator ->
// dispatcher -> listener callbacks. Construct exactly one per process.
type Service struct {
	store  *settings.Store
	window *dedup.Window
	reg    *channel.Registry
	mgr    *channel.Manager
	disp   *alert.Dispatcher

	mu        sync.Mutex
	listeners []listener // registration order
	history   []types.EnrichedEvent
}

// New constructs the service. The settings store opens immediately so the
// first dispatch already sees persisted preferences.
func New(opts Options) (*Service, error) {
	store, err := settings.NewStore(opts.SettingsDBPath, opts.Profile)
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:  store,
		window: dedup.NewWindow(dedup.DefaultCapacity),
		reg:    channel.NewRegistry(),
	}
	s.disp = alert.NewDispatcher(store, opts.Tones, opts.Speaker, opts.Toaster)
	s.mgr = channel.NewManager(channel.Options{
		URL:          opts.ServerURL,
		BackoffBase:  opts.BackoffBase,
		MaxAttempts:  opts.MaxAttempts,
		PingInterval: opts.PingInterval,
	}, s.reg)
	s.mgr.OnFrame(s.handleFrame)
	s.mgr.OnStateChange(s.fanOutState)
	return s, nil
}

// Initialize connects with the given credential. Call on user login.
func (s *Service) Initialize(authToken string) error {
	return s.mgr.Connect(authToken)
}

// Shutdown disconnects and closes the settings store. Call on logout or
// process exit.
func (s *Service) Shutdown() {
	s.mgr.Disconnect()
	if err := s.store.Close(); err != nil {
		tool.DefaultLogger.Warnf("[Bell] Failed to close settings store: %v", err)
	}
}

// State returns the current connection state, for indicator UIs.
func (s *Service) State() types.ConnectionState {
	return s.mgr.State()
}

// Subscribe registers a listener for deduplicated events and connection-state
// changes. Either callback may be nil. The returned func unsubscribes; a
// listener unsubscribing concurrently with a dispatch may still receive that
// one in-flight event.
func (s *Service) Subscribe(onEvent func(types.EnrichedEvent), onConn func(types.ConnectionState)) func() {
	id := uuid.NewString()
	s.mu.Lock()
	s.listeners = append(s.listeners, listener{id: id, onEvent: onEvent, onConn: onConn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// JoinRoom adds the room to the desired set; it is re-joined automatically
// after every reconnect.
func (s *Service) JoinRoom(name string) { s.reg.Join(name) }

// LeaveRoom removes the room from the desired set.
func (s *Service) LeaveRoom(name string) { s.reg.Leave(name) }

// GetSettings returns the current alerting preferences.
func (s *Service) GetSettings() types.Settings { return s.store.Get() }

// UpdateSettings merges the patch, persists, and applies to the next
// dispatch.
func (s *Service) UpdateSettings(patch types.SettingsPatch) (types.Settings, error) {
	return s.store.Update(patch)
}

// TestTone plays the configured tone without a real event, for a settings UI.
func (s *Service) TestTone() { s.disp.TestTone() }

// TestSpeech speaks a sample utterance with the current voice settings.
func (s *Service) TestSpeech() { s.disp.TestSpeech() }

// Recent returns the bounded in-memory window of enriched events, newest
// last.
func (s *Service) Recent() []types.EnrichedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.EnrichedEvent{}, s.history...)
}

// handleFrame is the single funnel from the transport into the pipeline.
func (s *Service) handleFrame(f types.ServerFrame) {
	if f.Type != types.FrameNotification || f.Event == nil {
		return
	}
	event := *f.Event
	if !s.window.Accept(event.ID) {
		tool.DefaultLogger.Debugf("[Bell] Duplicate event %s absorbed", event.ID)
		return
	}

	enriched := s.disp.Dispatch(event)

	s.mu.Lock()
	s.history = append(s.history, enriched)
	if len(s.history) > HistoryLimit {
		s.history = s.history[len(s.history)-HistoryLimit:]
	}
	subs := append([]listener{}, s.listeners...)
	s.mu.Unlock()

	for _, l := range subs {
		if l.onEvent != nil {
			invoke(l.id, func() { l.onEvent(enriched) })
		}
	}
}

func (s *Service) fanOutState(state types.ConnectionState) {
	s.mu.Lock()
	subs := append([]listener{}, s.listeners...)
	s.mu.Unlock()
	for _, l := range subs {
		if l.onConn != nil {
			invoke(l.id, func() { l.onConn(state) })
		}
	}
}

// invoke shields the fan-out from a panicking listener so the remaining
// listeners still run.
func invoke(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			tool.DefaultLogger.Errorf("[Bell] Listener %s panicked: %v", id, r)
		}
	}()
	fn()
}
