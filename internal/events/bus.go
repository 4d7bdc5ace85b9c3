// Package events provides the in-process pub/sub bus that fans engine
// activity out to the API layer and the websocket hub.
package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventEngineStarted    EventType = "ENGINE_STARTED"
	EventEngineStopped    EventType = "ENGINE_STOPPED"
	EventSetupCreated     EventType = "SETUP_CREATED"
	EventSetupInvalidated EventType = "SETUP_INVALIDATED"
	EventTradeOpened      EventType = "TRADE_OPENED"
	EventTradeClosed      EventType = "TRADE_CLOSED"
	EventTradeUpdate      EventType = "TRADE_UPDATE"
	EventSignalGenerated  EventType = "SIGNAL_GENERATED"
	EventBiasUpdated      EventType = "BIAS_UPDATED"
	EventError            EventType = "ERROR"
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

// PublishSetupCreated publishes a setup created event
func (eb *EventBus) PublishSetupCreated(setupID, instrument, direction string, entryPrice, stopLoss float64) {
	eb.Publish(Event{
		Type: EventSetupCreated,
		Data: map[string]interface{}{
			"setup_id":    setupID,
			"instrument":  instrument,
			"direction":   direction,
			"entry_price": entryPrice,
			"stop_loss":   stopLoss,
		},
	})
}

// PublishSetupInvalidated publishes a setup invalidated event
func (eb *EventBus) PublishSetupInvalidated(setupID, instrument string, price float64) {
	eb.Publish(Event{
		Type: EventSetupInvalidated,
		Data: map[string]interface{}{
			"setup_id":   setupID,
			"instrument": instrument,
			"price":      price,
		},
	})
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(tradeID, instrument, side string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"trade_id":    tradeID,
			"instrument":  instrument,
			"side":        side,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(tradeID, instrument, reason string, exitPrice, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"trade_id":   tradeID,
			"instrument": instrument,
			"reason":     reason,
			"exit_price": exitPrice,
			"pnl":        pnl,
		},
	})
}

// PublishTradeUpdate publishes an open trade mark-to-market update
func (eb *EventBus) PublishTradeUpdate(tradeID, instrument string, currentPrice, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeUpdate,
		Data: map[string]interface{}{
			"trade_id":      tradeID,
			"instrument":    instrument,
			"current_price": currentPrice,
			"pnl":           pnl,
		},
	})
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(strategyID, instrument, action, reason string, confidence float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"strategy_id": strategyID,
			"instrument":  instrument,
			"action":      action,
			"reason":      reason,
			"confidence":  confidence,
		},
	})
}

// PublishBiasUpdated publishes a monthly bias update event
func (eb *EventBus) PublishBiasUpdated(instrument, bias string) {
	eb.Publish(Event{
		Type: EventBiasUpdated,
		Data: map[string]interface{}{
			"instrument": instrument,
			"bias":       bias,
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
