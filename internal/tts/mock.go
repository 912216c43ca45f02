package tts

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"time"
)

const (
	mockToneHz    = 440
	mockWordMS    = 60
	mockAmplitude = 0.2
)

type mockSynth struct {
	sampleRate int
	channels   int
	delay      time.Duration
}

func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels, delay: 20 * time.Millisecond}
}

// Synthesize emits one short PCM tone per word of text, so callers exercise
// multi-chunk assembly without a provider.
func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(m.delay):
		}
		words := max(len(strings.Fields(req.Text)), 1)
		tone := m.tone()
		for i := range words {
			select {
			case chunks <- SynthChunk{
				RequestID:  req.RequestID,
				Sequence:   i,
				Encoding:   EncodingPCM,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				Audio:      tone,
				Final:      i == words-1,
			}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return chunks, errs
}

// tone renders mockWordMS of a sine wave as interleaved 16-bit PCM.
func (m *mockSynth) tone() []byte {
	frames := max(m.sampleRate*mockWordMS/1000, 1)
	channels := max(m.channels, 1)
	pcm := make([]byte, frames*channels*2)
	for f := range frames {
		v := int16(mockAmplitude * math.MaxInt16 * math.Sin(2*math.Pi*mockToneHz*float64(f)/float64(m.sampleRate)))
		for c := range channels {
			binary.LittleEndian.PutUint16(pcm[(f*channels+c)*2:], uint16(v))
		}
	}
	return pcm
}
