package events

import (
	"fmt"
	"sync"
)

// Topics emitted by the batch scheduler.
const (
	TopicBatchProcessed    = "campaign.batch_processed"
	TopicCampaignCompleted = "campaign.completed"
)

// Publisher broadcasts engine events for operator tooling. Publishing is
// best-effort: the batch scheduler never fails an invocation over it.
type Publisher interface {
	Publish(topic string, payload any) error
}

// InMemoryPublisher dispatches events to registered handlers in-process.
// Used in tests and local runs without a broker.
type InMemoryPublisher struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{
		handlers: make(map[string][]func(payload any) error),
	}
}

func (p *InMemoryPublisher) Publish(topic string, payload any) error {
	p.mu.Lock()
	handlers := p.handlers[topic]
	p.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(payload); err != nil {
			return fmt.Errorf("handler for topic %s failed: %w", topic, err)
		}
	}
	return nil
}

// Subscribe adds a handler for a topic.
func (p *InMemoryPublisher) Subscribe(topic string, handler func(payload any) error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[topic] = append(p.handlers[topic], handler)
}
