package relay

import (
	"net/http"

	"github.com/loqalabs/musclecoach/internal/llm"
)

// textStream forwards generated fragments to the client as they arrive. The
// response is committed only by the first non-empty fragment, so a provider
// failure before that can still be answered with a JSON error.
type textStream struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	committed bool
	bytes     int
}

func newTextStream(w http.ResponseWriter) *textStream {
	f, _ := w.(http.Flusher)
	return &textStream{w: w, flusher: f}
}

func (s *textStream) commit() {
	if s.committed {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
	s.committed = true
}

// write is an llm consumer.
func (s *textStream) write(chunk llm.Chunk) error {
	if chunk.Content == "" {
		return nil
	}
	s.commit()
	n, err := s.w.Write([]byte(chunk.Content))
	s.bytes += n
	if err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// close ends a successful generation. A generation with no text still
// answers 200 with an empty body.
func (s *textStream) close() {
	s.commit()
}
