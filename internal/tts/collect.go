package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// Audio is a complete synthesized utterance.
type Audio struct {
	Data     []byte
	Encoding string
}

// Collect drains a synthesis into one payload. Raw PCM output is wrapped in a
// 16-bit WAV container so browsers can play it directly.
func Collect(ctx context.Context, synth Synthesizer, req SynthRequest) (Audio, error) {
	chunks, errs := synth.Synthesize(ctx, req)

	var (
		buf        bytes.Buffer
		encoding   string
		sampleRate int
		channels   int
		synthErr   error
	)
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if encoding == "" {
				encoding = chunk.Encoding
				sampleRate = chunk.SampleRate
				channels = chunk.Channels
			}
			buf.Write(chunk.Audio)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && synthErr == nil {
				synthErr = err
			}
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		}
	}
	if synthErr != nil {
		return Audio{}, synthErr
	}
	if buf.Len() == 0 {
		return Audio{}, ErrNoAudio
	}
	if encoding != EncodingPCM {
		return Audio{Data: buf.Bytes(), Encoding: encoding}, nil
	}
	data, err := pcmToWav(buf.Bytes(), sampleRate, channels)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: data, Encoding: EncodingWAV}, nil
}

func pcmToWav(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	file := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return io.ReadAll(file.Reader())
}
