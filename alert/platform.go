// Package alert renders accepted notifications to the configured alert
// channels: toast text, synthesized tone, and speech.
package alert

import (
	"context"

	"github.com/orderbell-io/orderbell-go/types"
)

// ToneClass picks which of the three alert tones to synthesize. The tone kind
// from settings shapes the sound; the class keeps order, update and info
// alerts audibly distinct.
type ToneClass string

const (
	ToneClassOrder  ToneClass = "order"
	ToneClassUpdate ToneClass = "update"
	ToneClassInfo   ToneClass = "info"
)

// Utterance is one speech request.
type Utterance struct {
	Text    string
	VoiceID string
	Rate    float64 // 0.5..2.0 multiplier
	Pitch   float64 // 0..2
	Volume  float64 // 0..1
}

// TonePlayer plays a short synthesized tone. Implementations must be safe for
// concurrent use.
type TonePlayer interface {
	PlayTone(class ToneClass, kind types.ToneKind, volume float64) error
}

// Speaker speaks an utterance, honoring ctx cancellation so a newer utterance
// can cut an older one short.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) error
}

// Toast is the display rendering of an accepted event.
type Toast struct {
	Text string
	Icon string
}

// Toaster surfaces toast renderings. The default implementation just logs;
// a UI host supplies its own.
type Toaster interface {
	Show(t Toast) error
}

// NopTonePlayer discards tones. For headless use.
type NopTonePlayer struct{}

func (NopTonePlayer) PlayTone(ToneClass, types.ToneKind, float64) error { return nil }

// NopSpeaker discards utterances. For headless use.
type NopSpeaker struct{}

func (NopSpeaker) Speak(context.Context, Utterance) error { return nil }

var (
	_ TonePlayer = NopTonePlayer{}
	_ Speaker    = NopSpeaker{}
)
