package publisher_test

import (
	"context"
	"sync"
	"time"

	"rescue-console/internal/publisher"
)

// fakeKVStore 仅用于单元测试（内存 KV + TTL + 事件列表）
type fakeKVStore struct {
	mu     sync.Mutex
	data   map[string]fakeKVItem
	events []fakeEvent
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

type fakeEvent struct {
	stream    string
	eventType string
	data      interface{}
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{
		data: make(map[string]fakeKVItem),
	}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.data[key]
	if !ok {
		return "", publisher.ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", publisher.ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

func (f *fakeKVStore) Append(ctx context.Context, stream, eventType string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fakeEvent{stream: stream, eventType: eventType, data: data})
	return nil
}
