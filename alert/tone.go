package alert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"

	"github.com/orderbell-io/orderbell-go/types"
)

const (
	sampleRate   = 22050
	noteDuration = 110 // milliseconds per note
)

// toneNotes returns the note frequencies for a class/kind pair. The class
// decides the melodic shape, the kind shifts the base pitch so each tone
// family sounds different.
func toneNotes(class ToneClass, kind types.ToneKind) []float64 {
	base := 660.0
	switch kind {
	case types.ToneChime:
		base = 880.0
	case types.ToneBell:
		base = 523.25
	case types.ToneModern:
		base = 740.0
	}
	switch class {
	case ToneClassOrder:
		return []float64{base, base * 1.25, base * 1.5}
	case ToneClassUpdate:
		return []float64{base, base * 1.25}
	default:
		return []float64{base}
	}
}

// synthesizeWAV renders the notes as a 16-bit mono PCM WAV in memory.
func synthesizeWAV(notes []float64, volume float64) []byte {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	samplesPerNote := sampleRate * noteDuration / 1000
	pcm := make([]int16, 0, samplesPerNote*len(notes))
	for _, freq := range notes {
		for i := 0; i < samplesPerNote; i++ {
			// Short attack/release ramp to avoid clicks between notes.
			env := 1.0
			ramp := samplesPerNote / 10
			if i < ramp {
				env = float64(i) / float64(ramp)
			} else if i > samplesPerNote-ramp {
				env = float64(samplesPerNote-i) / float64(ramp)
			}
			v := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
			pcm = append(pcm, int16(v*env*volume*math.MaxInt16*0.8))
		}
	}

	dataLen := len(pcm) * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}

// CommandTonePlayer pipes a synthesized WAV into an external player binary
// (aplay, paplay, or similar reading WAV from stdin).
type CommandTonePlayer struct {
	command string
}

// NewCommandTonePlayer resolves the player binary up front so a missing
// backend surfaces at construction rather than on the first alert.
func NewCommandTonePlayer(command string) (*CommandTonePlayer, error) {
	if command == "" {
		command = "aplay"
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("audio player %q not found: %v", command, err)
	}
	return &CommandTonePlayer{command: resolved}, nil
}

func (p *CommandTonePlayer) PlayTone(class ToneClass, kind types.ToneKind, volume float64) error {
	wav := synthesizeWAV(toneNotes(class, kind), volume)
	cmd := exec.Command(p.command, "-q")
	cmd.Stdin = bytes.NewReader(wav)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play tone: %v", err)
	}
	return nil
}

var _ TonePlayer = (*CommandTonePlayer)(nil)
