package registry

import (
	"sort"
	"sync"

	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// ParseFunc turns a raw topic payload into flat records.
type ParseFunc func(raw any, sessionKey int) ([]frame.Record, error)

// ParserRegistry maps feed topic names to parse functions.
type ParserRegistry struct {
	mu      sync.RWMutex
	parsers map[string]ParseFunc
}

// NewParserRegistry creates a new empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[string]ParseFunc)}
}

// Register adds or replaces the parser for topic.
func (r *ParserRegistry) Register(topic string, fn ParseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[topic] = fn
}

// Lookup returns the parser registered for topic.
func (r *ParserRegistry) Lookup(topic string) (ParseFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.parsers[topic]
	return fn, ok
}

// Has reports whether topic has a parser.
func (r *ParserRegistry) Has(topic string) bool {
	_, ok := r.Lookup(topic)
	return ok
}

// Parse runs the parser registered for topic.
func (r *ParserRegistry) Parse(topic string, raw any, sessionKey int) ([]frame.Record, error) {
	fn, ok := r.Lookup(topic)
	if !ok {
		return nil, &core.TopicNotFoundError{Topic: topic}
	}
	return fn(raw, sessionKey)
}

// Topics returns the registered topic names, sorted.
func (r *ParserRegistry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Count returns the number of registered parsers.
func (r *ParserRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parsers)
}
