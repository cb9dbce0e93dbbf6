package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventRunStarted     EventType = "RUN_STARTED"
	EventRunCompleted   EventType = "RUN_COMPLETED"
	EventRunFailed      EventType = "RUN_FAILED"
	EventSwingConfirmed EventType = "SWING_CONFIRMED"
	EventSignalFired    EventType = "SIGNAL_FIRED"
	EventTrendEnded     EventType = "TREND_ENDED"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishRunStarted publishes a run started event
func (eb *EventBus) PublishRunStarted(runID, symbol string, barCount int) {
	eb.Publish(Event{
		Type: EventRunStarted,
		Data: map[string]interface{}{
			"run_id":    runID,
			"symbol":    symbol,
			"bar_count": barCount,
		},
	})
}

// PublishRunCompleted publishes a run completed event
func (eb *EventBus) PublishRunCompleted(runID, symbol string, swings, signals, outcomes int) {
	eb.Publish(Event{
		Type: EventRunCompleted,
		Data: map[string]interface{}{
			"run_id":   runID,
			"symbol":   symbol,
			"swings":   swings,
			"signals":  signals,
			"outcomes": outcomes,
		},
	})
}

// PublishRunFailed publishes a run failed event
func (eb *EventBus) PublishRunFailed(runID, symbol, reason string) {
	eb.Publish(Event{
		Type: EventRunFailed,
		Data: map[string]interface{}{
			"run_id": runID,
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishSwingConfirmed publishes a swing confirmation event
func (eb *EventBus) PublishSwingConfirmed(runID, symbol, kind string, index int, price float64, confirmedIndex int) {
	eb.Publish(Event{
		Type: EventSwingConfirmed,
		Data: map[string]interface{}{
			"run_id":          runID,
			"symbol":          symbol,
			"kind":            kind,
			"index":           index,
			"price":           price,
			"confirmed_index": confirmedIndex,
		},
	})
}

// PublishSignalFired publishes a signal fired event
func (eb *EventBus) PublishSignalFired(runID, symbol, signalID, detector, direction string, index int, triggerPrice float64) {
	eb.Publish(Event{
		Type: EventSignalFired,
		Data: map[string]interface{}{
			"run_id":        runID,
			"symbol":        symbol,
			"signal_id":     signalID,
			"detector":      detector,
			"direction":     direction,
			"index":         index,
			"trigger_price": triggerPrice,
		},
	})
}

// PublishTrendEnded publishes a trend lifecycle end event
func (eb *EventBus) PublishTrendEnded(runID, symbol, signalID, reason string, breakIndex int) {
	eb.Publish(Event{
		Type: EventTrendEnded,
		Data: map[string]interface{}{
			"run_id":      runID,
			"symbol":      symbol,
			"signal_id":   signalID,
			"reason":      reason,
			"break_index": breakIndex,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
