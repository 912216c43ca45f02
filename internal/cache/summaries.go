// Package cache memoizes buffered summary results keyed by endpoint and the
// normalized set of muscle names.
package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Summaries is a bounded, time-limited store of per-muscle summary lines.
// Concurrent misses for the same key share one upstream call.
type Summaries struct {
	entries *expirable.LRU[string, map[string]string]
	group   singleflight.Group
	observe func(ctx context.Context, result string)
}

// Lookup results reported to the observer.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultShared = "shared"
)

// NewSummaries returns a cache holding at most size entries for ttl. A nil
// observer is allowed.
func NewSummaries(size int, ttl time.Duration, observe func(ctx context.Context, result string)) *Summaries {
	if size <= 0 {
		size = 1
	}
	if observe == nil {
		observe = func(context.Context, string) {}
	}
	return &Summaries{
		entries: expirable.NewLRU[string, map[string]string](size, nil, ttl),
		observe: observe,
	}
}

// Normalize lower-cases, trims, de-duplicates and sorts names.
func Normalize(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Fingerprint identifies a request for caching.
func Fingerprint(endpoint string, names []string) string {
	return fmt.Sprintf("%s|%s", endpoint, strings.Join(Normalize(names), ","))
}

// Get returns the summaries for key, calling fill on a miss. Results of a
// failed fill are not stored. The boolean reports whether the value came from
// the cache.
//
// A shared fill runs detached from any single caller's cancellation and keeps
// the first caller's deadline. A caller whose ctx ends stops waiting without
// cancelling the fill for the others.
func (s *Summaries) Get(ctx context.Context, key string, fill func(ctx context.Context) (map[string]string, error)) (map[string]string, bool, error) {
	if v, ok := s.entries.Get(key); ok {
		s.observe(ctx, ResultHit)
		return v, true, nil
	}
	ch := s.group.DoChan(key, func() (any, error) {
		if v, ok := s.entries.Get(key); ok {
			return v, nil
		}
		fillCtx, cancel := detach(ctx)
		defer cancel()
		res, err := fill(fillCtx)
		if err != nil {
			return nil, err
		}
		s.entries.Add(key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.observe(ctx, ResultShared)
		} else {
			s.observe(ctx, ResultMiss)
		}
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(map[string]string), false, nil
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

// Len reports the number of live entries.
func (s *Summaries) Len() int { return s.entries.Len() }

// Purge drops every entry.
func (s *Summaries) Purge() { s.entries.Purge() }
