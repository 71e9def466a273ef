package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// allEntities is the subscription key for the global stream.
const allEntities = ""

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[domain.EntityID]map[chan<- string]struct{}
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[domain.EntityID]map[chan<- string]struct{}),
	}
}

// Subscribe registers a buffered channel for entity; an empty entity
// receives every event. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(entity domain.EntityID) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[entity]; !ok {
		sm.subscribers[entity] = make(map[chan<- string]struct{})
	}
	sm.subscribers[entity][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[entity]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, entity)
			}
		}
	}
}

// Subscribers reports how many channels listen to entity.
func (sm *StreamManager) Subscribers(entity domain.EntityID) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[entity])
}

// Broadcast sends msg to entity subscribers and to global subscribers.
func (sm *StreamManager) Broadcast(entity domain.EntityID, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []domain.EntityID{entity, allEntities} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				slog.Warn("SSE: Client buffer full, dropping message", "entity", entity)
			}
		}
	}
}

// Hooks returns lifecycle hooks that broadcast transition and termination events.
func (s *Server) Hooks() domain.LifecycleHooks {
	publish := func(_ context.Context, e *domain.TransitionEvent) {
		bytes, err := json.Marshal(e)
		if err != nil {
			s.Logger.Error("SSE: event encode failed", "error", err)
			return
		}
		s.Streams.Broadcast(e.Entity, string(bytes))
	}
	return domain.LifecycleHooks{
		OnTransition: publish,
		OnTerminate:  publish,
	}
}

// SubscribeEvents handles GET /events and GET /instances/{entity}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var entity domain.EntityID = allEntities
	if chi.URLParam(r, "entity") != "" {
		if entity, ok = s.entityParam(w, r); !ok {
			return
		}
		if _, err := s.Engine.Snapshot(r.Context(), entity); err != nil {
			s.writeError(w, "Snapshot", err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.Logger.Info("SSE: Subscribing to transitions", "entity", entity)
	ch, cancel := s.Streams.Subscribe(entity)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
