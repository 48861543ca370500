package types

// ToneKind selects which tone family the dispatcher synthesizes.
type ToneKind string

const (
	ToneDefault ToneKind = "default"
	ToneChime   ToneKind = "chime"
	ToneBell    ToneKind = "bell"
	ToneModern  ToneKind = "modern"
)

// ValidToneKind reports whether k is one of the known tone kinds.
func ValidToneKind(k ToneKind) bool {
	switch k {
	case ToneDefault, ToneChime, ToneBell, ToneModern:
		return true
	}
	return false
}

// Settings holds the user alerting preferences. Owned exclusively by the
// settings store; mutate only through its update API.
type Settings struct {
	SoundEnabled  bool     `json:"soundEnabled"`
	Volume        float64  `json:"volume"` // 0..1
	ToneKind      ToneKind `json:"toneKind"`
	SpeechEnabled bool     `json:"speechEnabled"`
	VoiceID       string   `json:"voiceId"`
	Rate          float64  `json:"rate"`         // 0.5..2.0
	Pitch         float64  `json:"pitch"`        // 0..2
	SpeechVolume  float64  `json:"speechVolume"` // 0..1
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	SoundEnabled  *bool     `json:"soundEnabled,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	ToneKind      *ToneKind `json:"toneKind,omitempty"`
	SpeechEnabled *bool     `json:"speechEnabled,omitempty"`
	VoiceID       *string   `json:"voiceId,omitempty"`
	Rate          *float64  `json:"rate,omitempty"`
	Pitch         *float64  `json:"pitch,omitempty"`
	SpeechVolume  *float64  `json:"speechVolume,omitempty"`
}

// DefaultSettings returns the settings used when nothing is stored yet or the
// stored record fails to parse.
func DefaultSettings() Settings {
	return Settings{
		SoundEnabled:  true,
		Volume:        0.7,
		ToneKind:      ToneDefault,
		SpeechEnabled: true,
		VoiceID:       "default",
		Rate:          1.0,
		Pitch:         1.0,
		SpeechVolume:  0.8,
	}
}

// Apply merges the patch into s and returns the result.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.Volume != nil {
		s.Volume = *p.Volume
	}
	if p.ToneKind != nil {
		s.ToneKind = *p.ToneKind
	}
	if p.SpeechEnabled != nil {
		s.SpeechEnabled = *p.SpeechEnabled
	}
	if p.VoiceID != nil {
		s.VoiceID = *p.VoiceID
	}
	if p.Rate != nil {
		s.Rate = *p.Rate
	}
	if p.Pitch != nil {
		s.Pitch = *p.Pitch
	}
	if p.SpeechVolume != nil {
		s.SpeechVolume = *p.SpeechVolume
	}
	return s
}

// Normalize clamps out-of-range values back into their documented ranges and
// replaces unknown tone kinds and empty voice ids with defaults.
func (s Settings) Normalize() Settings {
	s.Volume = clamp(s.Volume, 0, 1)
	s.Rate = clamp(s.Rate, 0.5, 2.0)
	s.Pitch = clamp(s.Pitch, 0, 2)
	s.SpeechVolume = clamp(s.SpeechVolume, 0, 1)
	if !ValidToneKind(s.ToneKind) {
		s.ToneKind = ToneDefault
	}
	if s.VoiceID == "" {
		s.VoiceID = "default"
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
