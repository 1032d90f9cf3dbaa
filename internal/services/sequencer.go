package services

import (
	"sort"
	"sync"
	"time"

	"auction-engine/internal/domain"
)

// closedRetention bounds how long a finished auction is remembered so late
// events for it are still recognized as stale.
const closedRetention = 15 * time.Minute

type pendingEvents struct {
	events map[int64]*domain.AuctionEvent
	since  time.Time
}

// eventSequencer releases events per auction in version order. An event
// arriving ahead of a gap waits until the gap fills or gapTimeout passes;
// anything at or below the last released version is dropped.
type eventSequencer struct {
	mu         sync.Mutex
	last       map[string]int64
	pending    map[string]*pendingEvents
	closed     map[string]time.Time
	gapTimeout time.Duration
	now        func() time.Time
}

func newEventSequencer(gapTimeout time.Duration, now func() time.Time) *eventSequencer {
	if now == nil {
		now = time.Now
	}
	return &eventSequencer{
		last:       make(map[string]int64),
		pending:    make(map[string]*pendingEvents),
		closed:     make(map[string]time.Time),
		gapTimeout: gapTimeout,
		now:        now,
	}
}

// Offer returns the events that may be delivered now and whether the offered
// event was dropped as stale.
func (s *eventSequencer) Offer(event *domain.AuctionEvent) (ready []*domain.AuctionEvent, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, version := event.AuctionID, event.Version()
	if _, done := s.closed[id]; done {
		return nil, true
	}
	last, seen := s.last[id]

	switch {
	case !seen:
		// first event this process has seen for the auction
		s.last[id] = version
		ready = append(ready, event)
	case version <= last:
		return nil, true
	case version == last+1:
		s.last[id] = version
		ready = append(ready, event)
	default:
		p := s.pending[id]
		if p == nil {
			p = &pendingEvents{events: make(map[int64]*domain.AuctionEvent), since: s.now()}
			s.pending[id] = p
		}
		p.events[version] = event
		return nil, false
	}

	return append(ready, s.drainLocked(id)...), false
}

// Expire releases buffered events whose gap has been open longer than
// gapTimeout, skipping the missing versions. It also drops finished auctions
// older than closedRetention.
func (s *eventSequencer) Expire() []*domain.AuctionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*domain.AuctionEvent
	now := s.now()
	for id, at := range s.closed {
		if now.Sub(at) >= closedRetention {
			delete(s.closed, id)
			delete(s.last, id)
		}
	}
	for id, p := range s.pending {
		if now.Sub(p.since) < s.gapTimeout {
			continue
		}
		versions := make([]int64, 0, len(p.events))
		for v := range p.events {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
		for _, v := range versions {
			ready = append(ready, p.events[v])
			s.last[id] = v
		}
		delete(s.pending, id)
	}
	return ready
}

// Close marks an auction finished. Its buffer is dropped and every later
// event for it is stale until the tombstone ages out.
func (s *eventSequencer) Close(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, auctionID)
	s.closed[auctionID] = s.now()
}

func (s *eventSequencer) drainLocked(id string) []*domain.AuctionEvent {
	p := s.pending[id]
	if p == nil {
		return nil
	}
	var ready []*domain.AuctionEvent
	for {
		next, ok := p.events[s.last[id]+1]
		if !ok {
			break
		}
		delete(p.events, next.Version())
		s.last[id] = next.Version()
		ready = append(ready, next)
	}
	for v := range p.events {
		if v <= s.last[id] {
			delete(p.events, v)
		}
	}
	if len(p.events) == 0 {
		delete(s.pending, id)
	} else if len(ready) > 0 {
		p.since = s.now()
	}
	return ready
}
