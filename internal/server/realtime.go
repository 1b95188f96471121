package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventBoostChanged    = "boost-change"
	RealtimeEventTrendingChanged = "trending-change"
	realtimeEventHeartbeat       = "heartbeat"
)

// RealtimeMessage is one season-scoped event pushed to connected listeners.
type RealtimeMessage struct {
	SeasonID      string    `json:"season_id"`
	EventType     string    `json:"event_type"`
	SubmissionID  string    `json:"submission_id"`
	DisplayBoosts int       `json:"display_boosts"`
	IsTrending    bool      `json:"is_trending"`
	Timestamp     time.Time `json:"timestamp"`
}

// RealtimeDispatcher fans boost events out to all subscribers of a season.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

func (d *RealtimeDispatcher) Subscribe(ctx context.Context, seasonID string) (<-chan RealtimeMessage, func()) {
	if seasonID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(seasonID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(seasonID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.SeasonID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.SeasonID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(seasonID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[seasonID]; !ok {
		d.subscribers[seasonID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[seasonID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(seasonID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[seasonID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, seasonID)
		}
	}
	d.mu.Unlock()
}
