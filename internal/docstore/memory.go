package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and single-node dev runs.
// Update closures run under the store lock, so every read-modify-write is
// atomic by construction and never observes a torn document.
type Memory struct {
	mu     sync.Mutex
	docs   map[string]Doc
	subs   map[int]*memorySub
	nextID int
}

type memorySub struct {
	collection string
	filter     Filter
	ch         chan Event
	closed     bool
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]Doc),
		subs: make(map[int]*memorySub),
	}
}

func (m *Memory) Get(ctx context.Context, path string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Update(ctx context.Context, path string, fn UpdateFn) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current json.RawMessage
	prev, exists := m.docs[path]
	if exists {
		current = prev.Data
	}
	next, err := fn(current)
	if err != nil {
		return Doc{}, err
	}

	doc := Doc{
		Path:      path,
		Data:      append(json.RawMessage(nil), next...),
		Version:   prev.Version + 1,
		UpdatedAt: time.Now().UTC(),
	}
	m.docs[path] = doc
	m.notifyLocked(Collection(path))
	return cloneDoc(doc), nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; !ok {
		return ErrNotFound
	}
	delete(m.docs, path)
	m.notifyLocked(Collection(path))
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, filter Filter) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(collection, filter), nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	sub := &memorySub{
		collection: collection,
		filter:     filter,
		ch:         make(chan Event, 1),
	}
	m.subs[id] = sub
	send(sub.ch, Event{Docs: m.queryLocked(collection, filter)})

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		delete(m.subs, id)
		close(sub.ch)
	}
	return newSubscription(sub.ch, cancel), nil
}

func (m *Memory) Now(ctx context.Context) time.Time { return time.Now().UTC() }

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs {
		sub.closed = true
		close(sub.ch)
		delete(m.subs, id)
	}
	return nil
}

func (m *Memory) queryLocked(collection string, filter Filter) []Doc {
	docs := make([]Doc, 0)
	for path, doc := range m.docs {
		if Collection(path) != collection {
			continue
		}
		if !filter.Matches(doc) {
			continue
		}
		docs = append(docs, cloneDoc(doc))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs
}

func (m *Memory) notifyLocked(collection string) {
	for _, sub := range m.subs {
		if sub.closed || sub.collection != collection {
			continue
		}
		send(sub.ch, Event{Docs: m.queryLocked(collection, sub.filter)})
	}
}

func cloneDoc(doc Doc) Doc {
	doc.Data = append(json.RawMessage(nil), doc.Data...)
	return doc
}
