package alert

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

// SettingsSource yields the current alerting preferences at dispatch time, so
// settings updates take effect on the next event without any retroactive
// effect on alerts already rendered.
type SettingsSource interface {
	Get() types.Settings
}

// LogToaster logs toast renderings; the default when no UI host registers a
// real one.
type LogToaster struct{}

func (LogToaster) Show(t Toast) error {
	tool.DefaultLogger.Infof("[Toast] (%s) %s", t.Icon, t.Text)
	return nil
}

// Dispatcher routes every deduplicated event to the alert channels the
// current settings enable. Dispatch never blocks on audio or speech and never
// propagates alert-channel failures to the caller.
type Dispatcher struct {
	settings SettingsSource
	tones    TonePlayer
	speaker  Speaker
	toaster  Toaster

	// Guards against tone storms when a burst of events arrives at once.
	toneLimiter *rate.Limiter

	// fallbackBeep fires when the tone backend errors. Overridable in tests.
	fallbackBeep func()

	mu          sync.Mutex
	speakCancel context.CancelFunc
}

// NewDispatcher wires the dispatcher. Nil tones/speaker fall back to no-ops,
// a nil toaster falls back to logging.
func NewDispatcher(settings SettingsSource, tones TonePlayer, speaker Speaker, toaster Toaster) *Dispatcher {
	if tones == nil {
		tones = NopTonePlayer{}
	}
	if speaker == nil {
		speaker = NopSpeaker{}
	}
	if toaster == nil {
		toaster = LogToaster{}
	}
	return &Dispatcher{
		settings:     settings,
		tones:        tones,
		speaker:      speaker,
		toaster:      toaster,
		toneLimiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
		fallbackBeep: terminalBell,
	}
}

// Dispatch renders alerts for an event that already passed the deduplicator
// and returns the enriched rendering for listener fan-out. Fire-and-forget:
// it does not wait for tone or speech playback.
func (d *Dispatcher) Dispatch(e types.NotificationEvent) types.EnrichedEvent {
	st := d.settings.Get()
	toast := RenderToast(e)

	if err := d.toaster.Show(toast); err != nil {
		tool.DefaultLogger.Warnf("[Alert] Toast failed: %v", err)
	}
	if st.SoundEnabled {
		d.playToneAsync(toneClassFor(e.Kind), st)
	}
	if st.SpeechEnabled {
		d.speakSingleFlight(SpeechText(e), st)
	}

	return types.EnrichedEvent{
		NotificationEvent: e,
		ToastText:         toast.Text,
		ToastIcon:         toast.Icon,
	}
}

// TestTone plays the currently configured tone regardless of the enabled
// flag, for the settings UI.
func (d *Dispatcher) TestTone() {
	st := d.settings.Get()
	d.playToneAsync(ToneClassOrder, st)
}

// TestSpeech speaks a sample sentence with the current voice settings.
func (d *Dispatcher) TestSpeech() {
	st := d.settings.Get()
	d.speakSingleFlight("This is a test of your notification voice settings.", st)
}

func (d *Dispatcher) playToneAsync(class ToneClass, st types.Settings) {
	if !d.toneLimiter.Allow() {
		tool.DefaultLogger.Debugf("[Alert] Tone suppressed by burst limiter")
		return
	}
	go func() {
		if err := d.tones.PlayTone(class, st.ToneKind, st.Volume); err != nil {
			tool.DefaultLogger.Warnf("[Alert] Tone playback failed, falling back to beep: %v", err)
			d.fallbackBeep()
		}
	}()
}

// speakSingleFlight cancels any utterance in progress before starting the new
// one: the newest message always wins and is heard immediately.
func (d *Dispatcher) speakSingleFlight(text string, st types.Settings) {
	if text == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.speakCancel != nil {
		d.speakCancel()
	}
	d.speakCancel = cancel
	d.mu.Unlock()

	go func() {
		defer cancel()
		err := d.speaker.Speak(ctx, Utterance{
			Text:    text,
			VoiceID: st.VoiceID,
			Rate:    st.Rate,
			Pitch:   st.Pitch,
			Volume:  st.SpeechVolume,
		})
		if err != nil && ctx.Err() == nil {
			tool.DefaultLogger.Warnf("[Alert] Speech failed: %v", err)
		}
	}()
}

// RenderToast produces the display rendering for an event.
func RenderToast(e types.NotificationEvent) Toast {
	switch e.Kind {
	case types.EventKindNewOrder:
		text := fmt.Sprintf("New Order #%s", e.ShortOrderID())
		if e.CustomerName != "" {
			text = fmt.Sprintf("New Order #%s from %s", e.ShortOrderID(), e.CustomerName)
		}
		return Toast{Text: text, Icon: "order"}
	case types.EventKindOrderUpdate:
		return Toast{Text: "Order update: " + e.Message, Icon: "update"}
	default:
		return Toast{Text: e.Message, Icon: severityIcon(e.Severity)}
	}
}

// SpeechText produces the spoken rendering for an event.
func SpeechText(e types.NotificationEvent) string {
	switch e.Kind {
	case types.EventKindNewOrder:
		if e.CustomerName == "" {
			return "New order received"
		}
		return "New order received from " + e.CustomerName
	case types.EventKindOrderUpdate:
		return "Order update: " + e.Message
	default:
		return e.Message
	}
}

func toneClassFor(kind types.EventKind) ToneClass {
	switch kind {
	case types.EventKindNewOrder:
		return ToneClassOrder
	case types.EventKindOrderUpdate:
		return ToneClassUpdate
	default:
		return ToneClassInfo
	}
}

func severityIcon(severity string) string {
	switch severity {
	case types.SeverityWarning:
		return "warning"
	case types.SeverityError:
		return "error"
	default:
		return "info"
	}
}

func terminalBell() {
	_, _ = os.Stdout.WriteString("\a")
}
