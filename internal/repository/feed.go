package repository

import (
	"context"
	"sync"

	"github.com/jovywahba/jovnumbergames/internal/domain"
)

// Feed fans committed rooms out to subscribers. Each subscriber has a
// single-slot channel that always holds the newest undelivered snapshot.
type Feed struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ch   chan Snapshot
	last int64
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a subscriber for roomID. The channel is closed when
// ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, roomID string) <-chan Snapshot {
	sub := &subscriber{ch: make(chan Snapshot, 1), last: -1}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	if f.subs[roomID] == nil {
		f.subs[roomID] = make(map[*subscriber]struct{})
	}
	f.subs[roomID][sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[roomID][sub]; !ok {
			return
		}
		delete(f.subs[roomID], sub)
		if len(f.subs[roomID]) == 0 {
			delete(f.subs, roomID)
		}
		close(sub.ch)
	}()

	return sub.ch
}

// Publish delivers room to its subscribers. Subscribers that already saw
// this version or a newer one are skipped.
func (f *Feed) Publish(room *domain.Room) {
	if room == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[room.ID] {
		if room.Version <= sub.last {
			continue
		}
		sub.last = room.Version
		sub.offer(Snapshot{Room: room.Clone()})
	}
}

// PublishError tells the subscribers of roomID that the feed failed. An
// empty roomID reaches every subscriber.
func (f *Feed) PublishError(roomID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, subs := range f.subs {
		if roomID != "" && id != roomID {
			continue
		}
		for sub := range subs {
			// never displace a pending room
			select {
			case sub.ch <- Snapshot{Err: err}:
			default:
			}
		}
	}
}

// Subscribers returns how many subscriptions roomID has.
func (f *Feed) Subscribers(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[roomID])
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, subs := range f.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(f.subs, id)
	}
}

// offer replaces any undelivered snapshot with s. Callers hold f.mu, so
// the feed is the only sender.
func (s *subscriber) offer(snap Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}
