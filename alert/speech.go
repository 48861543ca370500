package alert

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

const (
	baseWordsPerMinute = 175
	minWordsPerMinute  = 80
	maxWordsPerMinute  = 450
)

// CommandSpeaker speaks through an external TTS binary with an espeak-ng
// style flag set (-v voice, -s words/min, -p pitch, -a amplitude).
type CommandSpeaker struct {
	command string
}

// NewCommandSpeaker resolves the TTS binary. A missing engine is reported
// here so the dispatcher can fall back to a no-op speaker.
func NewCommandSpeaker(command string) (*CommandSpeaker, error) {
	if command == "" {
		command = "espeak-ng"
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("speech engine %q not found: %v", command, err)
	}
	return &CommandSpeaker{command: resolved}, nil
}

// Speak runs the TTS binary for the utterance. Cancelling ctx kills the
// process, which is how single-flight cuts a superseded utterance short.
func (s *CommandSpeaker) Speak(ctx context.Context, u Utterance) error {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return nil
	}

	args := []string{}
	if u.VoiceID != "" && u.VoiceID != "default" {
		args = append(args, "-v", u.VoiceID)
	}
	wpm := int(baseWordsPerMinute * u.Rate)
	if wpm < minWordsPerMinute {
		wpm = minWordsPerMinute
	}
	if wpm > maxWordsPerMinute {
		wpm = maxWordsPerMinute
	}
	args = append(args, "-s", strconv.Itoa(wpm))
	// espeak pitch range is 0..99, centered at 50 for pitch multiplier 1.0.
	pitch := int(u.Pitch * 49.5)
	if pitch < 0 {
		pitch = 0
	}
	if pitch > 99 {
		pitch = 99
	}
	args = append(args, "-p", strconv.Itoa(pitch))
	// Amplitude 0..200, default 100 at volume 0.5.
	amp := int(u.Volume * 200)
	if amp < 0 {
		amp = 0
	}
	if amp > 200 {
		amp = 200
	}
	args = append(args, "-a", strconv.Itoa(amp), text)

	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

var _ Speaker = (*CommandSpeaker)(nil)
