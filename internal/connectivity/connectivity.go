// Package connectivity tracks whether the host environment is online and
// publishes transitions to subscribers.
package connectivity

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mkalas/centavo/internal/service"
)

// Checker maintains the current online/offline state and notifies
// subscribers on every transition. State changes either from periodic
// probing (Run) or from an explicit SetOnline (e.g. a host signal).
type Checker struct {
	probe       func(ctx context.Context) bool
	subscribers map[int]chan bool
	mu          sync.Mutex
	nextSub     int
	interval    time.Duration
	online      bool
}

// NewChecker creates a checker that probes the given URL. The checker starts
// offline until the first probe or SetOnline call.
func NewChecker(probeURL string, interval time.Duration) *Checker {
	httpClient := &http.Client{Timeout: 5 * time.Second}
	return &Checker{
		probe: func(ctx context.Context) bool {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
			if err != nil {
				return false
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return false
			}
			defer func() { _ = resp.Body.Close() }()
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.StatusCode < 500
		},
		interval:    interval,
		subscribers: make(map[int]chan bool),
	}
}

// NewCheckerWithProbe creates a checker with a custom probe, used in tests
// and by hosts that have their own connectivity signal.
func NewCheckerWithProbe(probe func(ctx context.Context) bool, interval time.Duration) *Checker {
	return &Checker{
		probe:       probe,
		interval:    interval,
		subscribers: make(map[int]chan bool),
	}
}

// Online reports the last observed connectivity state.
func (c *Checker) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline records a connectivity state, notifying subscribers if it
// changed. Sends happen under the mutex so a subscription closing
// concurrently can never race the notification.
func (c *Checker) SetOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.online == online {
		return
	}
	c.online = online

	for _, ch := range c.subscribers {
		// Non-blocking: a slow subscriber misses intermediate flaps but
		// always observes the latest state via Online().
		select {
		case ch <- online:
		default:
		}
	}
}

// Run probes periodically until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.SetOnline(c.probe(ctx))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SetOnline(c.probe(ctx))
		}
	}
}

// Subscribe returns a handle emitting the new state on every transition.
func (c *Checker) Subscribe() service.ConnectivitySubscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan bool, 4)
	c.subscribers[id] = ch

	return &checkerSubscription{checker: c, id: id, events: ch}
}

type checkerSubscription struct {
	checker *Checker
	events  chan bool
	id      int
	once    sync.Once
}

func (s *checkerSubscription) Events() <-chan bool { return s.events }

func (s *checkerSubscription) Close() {
	s.once.Do(func() {
		// Deregister and close under the same mutex that guards SetOnline
		// sends, so the channel cannot be closed mid-notification.
		s.checker.mu.Lock()
		defer s.checker.mu.Unlock()
		delete(s.checker.subscribers, s.id)
		close(s.events)
	})
}
