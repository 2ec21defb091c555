package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

/*
Severity grades a notification for presentation purposes.
*/
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

/*
Notification is one user-visible message with an auto-dismiss duration. This
is the single channel through which every component surfaces errors; nothing
in the core crashes the engine.
*/
type Notification struct {
	Severity Severity
	Message  string
	TTL      time.Duration
}

/*
Hub fans notifications out to subscribers. Sends never block: a subscriber
that stopped draining misses messages instead of stalling the orchestration
thread.
*/
type Hub struct {
	mu          sync.RWMutex
	subscribers []chan Notification
}

func NewHub() *Hub {
	return &Hub{}
}

/*
Subscribe returns a channel that receives every future notification. The
buffer absorbs bursts between UI frames.
*/
func (h *Hub) Subscribe() <-chan Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Notification, 16)
	h.subscribers = append(h.subscribers, ch)
	return ch
}

/*
Publish delivers a notification to all subscribers and mirrors it to the
log.
*/
func (h *Hub) Publish(severity Severity, message string, ttl time.Duration) {
	switch severity {
	case Error:
		log.Error(message)
	case Warning:
		log.Warn(message)
	default:
		log.Info(message)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	notification := Notification{Severity: severity, Message: message, TTL: ttl}

	for _, ch := range h.subscribers {
		select {
		case ch <- notification:
		default:
			// Drop rather than block the caller.
		}
	}
}

// Convenience wrappers with the default dismiss durations the UI uses.

func (h *Hub) Infof(format string, args ...any) {
	h.Publish(Info, fmt.Sprintf(format, args...), 4*time.Second)
}

func (h *Hub) Successf(format string, args ...any) {
	h.Publish(Success, fmt.Sprintf(format, args...), 4*time.Second)
}

func (h *Hub) Warnf(format string, args ...any) {
	h.Publish(Warning, fmt.Sprintf(format, args...), 6*time.Second)
}

func (h *Hub) Errorf(format string, args ...any) {
	h.Publish(Error, fmt.Sprintf(format, args...), 8*time.Second)
}
