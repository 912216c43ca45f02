package tts

import (
	"context"
	"errors"
	"fmt"
)

// Audio encodings reported on chunks.
const (
	EncodingMP3      = "MP3"
	EncodingOggOpus  = "OGG_OPUS"
	EncodingLinear16 = "LINEAR16"
	EncodingPCM      = "PCM_S16LE"
	EncodingWAV      = "WAV"
)

var (
	ErrMissingAPIKey = errors.New("missing speech synthesis API key")
	ErrNoAudio       = errors.New("no audio content returned")
)

// UpstreamError carries a provider's non-OK response verbatim.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("speech provider returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("speech provider returned status %d", e.StatusCode)
}

// Voice selects language, voice and output encoding.
type Voice struct {
	LanguageCode  string
	Name          string
	AudioEncoding string
}

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	RequestID string
	Text      string
	Voice     Voice
}

// SynthChunk contains encoded audio. Raw PCM chunks carry EncodingPCM and the
// sample format needed to wrap them.
type SynthChunk struct {
	RequestID  string
	Sequence   int
	Encoding   string
	SampleRate int
	Channels   int
	Audio      []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}
