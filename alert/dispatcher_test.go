package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderbell-io/orderbell-go/types"
)

type fixedSettings struct {
	mu sync.Mutex
	st types.Settings
}

func (f *fixedSettings) Get() types.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fixedSettings) set(st types.Settings) {
	f.mu.Lock()
	f.st = st
	f.mu.Unlock()
}

type recordingTones struct {
	mu      sync.Mutex
	calls   []ToneClass
	kinds   []types.ToneKind
	volumes []float64
	err     error
	played  chan struct{}
}

func newRecordingTones() *recordingTones {
	return &recordingTones{played: make(chan struct{}, 16)}
}

func (r *recordingTones) PlayTone(class ToneClass, kind types.ToneKind, volume float64) error {
	r.mu.Lock()
	r.calls = append(r.calls, class)
	r.kinds = append(r.kinds, kind)
	r.volumes = append(r.volumes, volume)
	err := r.err
	r.mu.Unlock()
	r.played <- struct{}{}
	return err
}

func (r *recordingTones) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingSpeaker struct {
	mu        sync.Mutex
	texts     []string
	cancelled int
	block     chan struct{} // when set, Speak blocks until ctx is done or chan closed
	started   chan struct{}
}

func newRecordingSpeaker() *recordingSpeaker {
	return &recordingSpeaker{started: make(chan struct{}, 16)}
}

func (r *recordingSpeaker) Speak(ctx context.Context, u Utterance) error {
	r.mu.Lock()
	r.texts = append(r.texts, u.Text)
	block := r.block
	r.mu.Unlock()
	r.started <- struct{}{}
	if block != nil {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cancelled++
			r.mu.Unlock()
			return ctx.Err()
		case <-block:
		}
	}
	return nil
}

func (r *recordingSpeaker) spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.texts...)
}

func newOrderEvent(id string) types.NotificationEvent {
	return types.NotificationEvent{
		ID:           id,
		Kind:         types.EventKindNewOrder,
		OrderID:      "ord-00000001",
		CustomerName: "Asha",
		TotalAmount:  250,
		CreatedAt:    time.Now(),
	}
}

func TestDispatchNewOrderHitsAllChannels(t *testing.T) {
	src := &fixedSettings{st: types.DefaultSettings()}
	tones := newRecordingTones()
	speaker := newRecordingSpeaker()
	d := NewDispatcher(src, tones, speaker, nil)

	enriched := d.Dispatch(newOrderEvent("n1"))

	require.Equal(t, "New Order #00000001 from Asha", enriched.ToastText)
	require.Equal(t, "order", enriched.ToastIcon)

	<-tones.played
	<-speaker.started
	require.Equal(t, 1, tones.count())
	require.Equal(t, []string{"New order received from Asha"}, speaker.spoken())
	require.Equal(t, []ToneClass{ToneClassOrder}, tones.calls)
	require.Equal(t, []types.ToneKind{types.ToneDefault}, tones.kinds)
	require.InDelta(t, 0.7, tones.volumes[0], 1e-9)
}

func TestDispatchSoundDisabledKeepsOtherChannels(t *testing.T) {
	st := types.DefaultSettings()
	st.SoundEnabled = false
	src := &fixedSettings{st: st}
	tones := newRecordingTones()
	speaker := newRecordingSpeaker()
	d := NewDispatcher(src, tones, speaker, nil)

	enriched := d.Dispatch(newOrderEvent("n1"))

	<-speaker.started
	require.Equal(t, 0, tones.count(), "no tone when sound is disabled")
	require.Len(t, speaker.spoken(), 1, "speech obeys its own flag")
	require.NotEmpty(t, enriched.ToastText, "toast is independent of sound")
}

func TestDispatchSpeechDisabled(t *testing.T) {
	st := types.DefaultSettings()
	st.SpeechEnabled = false
	src := &fixedSettings{st: st}
	tones := newRecordingTones()
	speaker := newRecordingSpeaker()
	d := NewDispatcher(src, tones, speaker, nil)

	d.Dispatch(newOrderEvent("n1"))
	<-tones.played
	require.Empty(t, speaker.spoken())
}

func TestSettingsChangeAppliesOnNextDispatch(t *testing.T) {
	src := &fixedSettings{st: types.DefaultSettings()}
	tones := newRecordingTones()
	d := NewDispatcher(src, tones, NopSpeaker{}, nil)

	d.Dispatch(newOrderEvent("n1"))
	<-tones.played

	st := src.Get()
	st.SoundEnabled = false
	src.set(st)

	d.Dispatch(newOrderEvent("n2"))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, tones.count())
}

func TestToneFailureFallsBackToBeep(t *testing.T) {
	src := &fixedSettings{st: types.DefaultSettings()}
	tones := newRecordingTones()
	tones.err = errors.New("audio backend unavailable")
	d := NewDispatcher(src, tones, NopSpeaker{}, nil)

	beeped := make(chan struct{}, 1)
	d.fallbackBeep = func() { beeped <- struct{}{} }

	d.Dispatch(newOrderEvent("n1"))
	select {
	case <-beeped:
	case <-time.After(time.Second):
		t.Fatal("expected fallback beep after tone failure")
	}
}

func TestSpeechSingleFlightNewestWins(t *testing.T) {
	src := &fixedSettings{st: types.DefaultSettings()}
	speaker := newRecordingSpeaker()
	speaker.block = make(chan struct{}) // never closed: utterances run until cancelled
	d := NewDispatcher(src, NopTonePlayer{}, speaker, nil)

	d.Dispatch(newOrderEvent("n1"))
	<-speaker.started
	update := types.NotificationEvent{ID: "n2", Kind: types.EventKindOrderUpdate, Message: "packed"}
	d.Dispatch(update)
	<-speaker.started

	// The first utterance must have been cancelled by the second.
	deadline := time.After(time.Second)
	for {
		speaker.mu.Lock()
		cancelled := speaker.cancelled
		speaker.mu.Unlock()
		if cancelled >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first utterance was never cancelled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	require.Equal(t, []string{"New order received from Asha", "Order update: packed"}, speaker.spoken())
}

func TestRenderToastVariants(t *testing.T) {
	order := newOrderEvent("n1")
	require.Equal(t, Toast{Text: "New Order #00000001 from Asha", Icon: "order"}, RenderToast(order))

	order.CustomerName = ""
	require.Equal(t, "New Order #00000001", RenderToast(order).Text)

	short := types.NotificationEvent{Kind: types.EventKindNewOrder, OrderID: "o-42"}
	require.Equal(t, "New Order #o-42", RenderToast(short).Text)

	update := types.NotificationEvent{Kind: types.EventKindOrderUpdate, Message: "shipped"}
	require.Equal(t, Toast{Text: "Order update: shipped", Icon: "update"}, RenderToast(update))

	generic := types.NotificationEvent{Kind: types.EventKindGeneric, Message: "disk almost full", Severity: types.SeverityWarning}
	require.Equal(t, Toast{Text: "disk almost full", Icon: "warning"}, RenderToast(generic))

	unknown := types.NotificationEvent{Kind: types.EventKindGeneric, Message: "hello", Severity: "odd"}
	require.Equal(t, "info", RenderToast(unknown).Icon)
}

func TestSpeechTextVariants(t *testing.T) {
	require.Equal(t, "New order received from Asha", SpeechText(newOrderEvent("n1")))

	anon := newOrderEvent("n1")
	anon.CustomerName = ""
	require.Equal(t, "New order received", SpeechText(anon))

	update := types.NotificationEvent{Kind: types.EventKindOrderUpdate, Message: "delayed"}
	require.Equal(t, "Order update: delayed", SpeechText(update))

	generic := types.NotificationEvent{Kind: types.EventKindGeneric, Message: "maintenance at noon"}
	require.Equal(t, "maintenance at noon", SpeechText(generic))
}

func TestTestToneAndTestSpeechUseCurrentSettings(t *testing.T) {
	st := types.DefaultSettings()
	st.SoundEnabled = false // diagnostics still play
	st.SpeechEnabled = false
	src := &fixedSettings{st: st}
	tones := newRecordingTones()
	speaker := newRecordingSpeaker()
	d := NewDispatcher(src, tones, speaker, nil)

	d.TestTone()
	<-tones.played
	require.Equal(t, 1, tones.count())

	d.TestSpeech()
	<-speaker.started
	require.Len(t, speaker.spoken(), 1)
}

func TestSynthesizeWAVHeader(t *testing.T) {
	wav := synthesizeWAV(toneNotes(ToneClassOrder, types.ToneChime), 0.5)
	require.Greater(t, len(wav), 44, "header plus samples")
	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, "data", string(wav[36:40]))
}
