package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

type googleSynth struct {
	apiKey   string
	endpoint string
	opts     []option.ClientOption
}

// NewGoogleSynth builds a Cloud Text-to-Speech backend authenticated by API
// key. The REST client is created per call so a missing key never reaches the
// network.
func NewGoogleSynth(apiKey, endpoint string, opts ...option.ClientOption) Synthesizer {
	return &googleSynth{apiKey: apiKey, endpoint: endpoint, opts: opts}
}

func (g *googleSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		audio, err := g.synthesize(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		chunks <- SynthChunk{
			RequestID: req.RequestID,
			Encoding:  encodingOrDefault(req.Voice.AudioEncoding),
			Audio:     audio,
			Final:     true,
		}
	}()
	return chunks, errs
}

func (g *googleSynth) synthesize(ctx context.Context, req SynthRequest) ([]byte, error) {
	if g.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := append([]option.ClientOption{option.WithAPIKey(g.apiKey)}, g.opts...)
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}

	encoding := encodingOrDefault(req.Voice.AudioEncoding)
	call := svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: req.Voice.LanguageCode,
			Name:         req.Voice.Name,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: encoding},
	})
	resp, err := call.Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &UpstreamError{StatusCode: gerr.Code, Body: gerr.Body}
		}
		return nil, err
	}
	if resp.AudioContent == "" {
		return nil, ErrNoAudio
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	return audio, nil
}

func encodingOrDefault(encoding string) string {
	if encoding == "" {
		return EncodingMP3
	}
	return strings.ToUpper(encoding)
}
