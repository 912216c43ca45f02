package tts

import (
	"fmt"

	"github.com/loqalabs/musclecoach/internal/config"
)

func New(cfg config.TTSConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynth(cfg.SampleRate, cfg.Channels), nil
	case "google":
		return NewGoogleSynth(cfg.APIKey, cfg.Endpoint), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels)
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}

// VoiceFromConfig returns the fixed voice configuration used for every call.
func VoiceFromConfig(cfg config.TTSConfig) Voice {
	return Voice{
		LanguageCode:  cfg.LanguageCode,
		Name:          cfg.VoiceName,
		AudioEncoding: cfg.AudioEncoding,
	}
}
