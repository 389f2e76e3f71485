package notify

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxSoundRepeats caps how many times the cue may replay; the cue never loops
// indefinitely.
const MaxSoundRepeats = 10

// SoundCue describes the audio played when an alert is active: either a remote
// URL or a user-supplied payload inlined as a data URI.
type SoundCue struct {
	sourceURL string
	inline    string // complete data URI, set when a local file was loaded
	repeats   int
}

// NewSoundCue builds a cue from a remote URL and an optional local file. When
// filePath is set its contents take precedence over the URL.
func NewSoundCue(sourceURL, filePath string, repeats int) (*SoundCue, error) {
	if repeats < 1 {
		repeats = 1
	}
	if repeats > MaxSoundRepeats {
		repeats = MaxSoundRepeats
	}

	cue := &SoundCue{sourceURL: sourceURL, repeats: repeats}
	if filePath != "" {
		payload, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read sound file: %w", err)
		}
		cue.inline = fmt.Sprintf("data:%s;base64,%s",
			soundMIME(filePath), base64.StdEncoding.EncodeToString(payload))
	}

	if cue.inline == "" && cue.sourceURL == "" {
		return nil, fmt.Errorf("sound cue needs a source URL or a file")
	}
	return cue, nil
}

// Src returns the audio element source: the inline data URI when present,
// otherwise the remote URL.
func (c *SoundCue) Src() string {
	if c.inline != "" {
		return c.inline
	}
	return c.sourceURL
}

// Repeats returns the bounded replay count.
func (c *SoundCue) Repeats() int {
	return c.repeats
}

func soundMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}
