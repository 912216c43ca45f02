package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/loqalabs/musclecoach/internal/execproc"
)

// execSynth drives a local synthesizer. It is sent
// {"text","voice","language","sample_rate","channels"} and streams back
// {"pcm_base64","final"} lines of signed 16-bit little-endian PCM.
type execSynth struct {
	cmd        *execproc.Command
	sampleRate int
	channels   int
}

type execLine struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

func NewExecSynth(command string, sampleRate, channels int) (Synthesizer, error) {
	cmd, err := execproc.Parse("tts", command)
	if err != nil {
		return nil, err
	}
	return &execSynth{cmd: cmd, sampleRate: sampleRate, channels: channels}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		request := map[string]any{
			"text":        req.Text,
			"voice":       req.Voice.Name,
			"language":    req.Voice.LanguageCode,
			"sample_rate": e.sampleRate,
			"channels":    e.channels,
		}
		seq := 0
		err := e.cmd.Run(ctx, request, func(raw []byte) error {
			var line execLine
			if err := json.Unmarshal(raw, &line); err != nil {
				return fmt.Errorf("decode tts output: %w", err)
			}
			pcm, err := base64.StdEncoding.DecodeString(line.PCMBase64)
			if err != nil {
				return fmt.Errorf("decode tts audio: %w", err)
			}
			chunk := SynthChunk{
				RequestID:  req.RequestID,
				Sequence:   seq,
				Encoding:   EncodingPCM,
				SampleRate: e.sampleRate,
				Channels:   e.channels,
				Audio:      pcm,
				Final:      line.Final,
			}
			seq++
			select {
			case chunks <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
	}()
	return chunks, errs
}
