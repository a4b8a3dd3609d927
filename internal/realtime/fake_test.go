package realtime

import (
	"context"
	"errors"
	"sync"

	"rescue-console/internal/models"
)

type fakeSubscription struct {
	destination string
	ch          chan Message
	done        chan struct{}
	once        sync.Once
	session     *fakeSession
}

func (s *fakeSubscription) Destination() string   { return s.destination }
func (s *fakeSubscription) C() <-chan Message     { return s.ch }
func (s *fakeSubscription) Done() <-chan struct{} { return s.done }

func (s *fakeSubscription) Unsubscribe() error {
	s.once.Do(func() { close(s.done) })
	s.session.mu.Lock()
	defer s.session.mu.Unlock()
	if s.session.subs[s.destination] == s {
		delete(s.session.subs, s.destination)
	}
	s.session.unsubscribed = append(s.session.unsubscribed, s.destination)
	return nil
}

type fakeSession struct {
	mu           sync.Mutex
	subs         map[string]*fakeSubscription
	subscribed   []string
	unsubscribed []string
	done         chan struct{}
	closeOnce    sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		subs: make(map[string]*fakeSubscription),
		done: make(chan struct{}),
	}
}

func (s *fakeSession) Subscribe(destination string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return nil, ErrNotConnected
	default:
	}
	sub := &fakeSubscription{
		destination: destination,
		ch:          make(chan Message, 16),
		done:        make(chan struct{}),
		session:     s,
	}
	s.subs[destination] = sub
	s.subscribed = append(s.subscribed, destination)
	return sub, nil
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Close() error {
	s.drop()
	return nil
}

// drop 模拟连接断开
func (s *fakeSession) drop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *fakeSession) publish(destination, body string) bool {
	s.mu.Lock()
	sub, ok := s.subs[destination]
	s.mu.Unlock()
	if !ok {
		return false
	}
	sub.ch <- Message{Destination: destination, Body: []byte(body)}
	return true
}

func (s *fakeSession) activeDestinations() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.subs))
	for d := range s.subs {
		out[d] = true
	}
	return out
}

func (s *fakeSession) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribed)
}

type fakeDialer struct {
	mu       sync.Mutex
	sessions []*fakeSession
	fail     int
}

func (d *fakeDialer) Dial(ctx context.Context) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("connection refused")
	}
	s := newFakeSession()
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

type scoreCall struct {
	id    string
	score float64
}

type fakeStore struct {
	mu         sync.Mutex
	records    []models.SurvivorRecord
	scores     []scoreCall
	patches    map[string]models.AttributePatch
	detections map[string]*models.Detection
	signals    map[string]models.WifiSignal
}

func newFakeStore(records ...models.SurvivorRecord) *fakeStore {
	return &fakeStore{
		records:    records,
		patches:    make(map[string]models.AttributePatch),
		detections: make(map[string]*models.Detection),
		signals:    make(map[string]models.WifiSignal),
	}
}

func (f *fakeStore) Records() []models.SurvivorRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.SurvivorRecord, len(f.records))
	copy(out, f.records)
	return out
}

func (f *fakeStore) setRecords(records ...models.SurvivorRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func (f *fakeStore) ApplyScoreUpdate(id string, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = append(f.scores, scoreCall{id, score})
	return nil
}

func (f *fakeStore) ApplyAttributePatch(id string, patch models.AttributePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches[id] = patch
	return nil
}

func (f *fakeStore) ApplyDetectionEvent(id string, det *models.Detection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detections[id] = det
	return nil
}

func (f *fakeStore) ApplyWifiSignal(sensorID string, sig models.WifiSignal) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals[sensorID] = sig
	return 1
}

func (f *fakeStore) scoreCalls() []scoreCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scoreCall, len(f.scores))
	copy(out, f.scores)
	return out
}

func (f *fakeStore) detection(id string) *models.Detection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detections[id]
}

func (f *fakeStore) signal(sensorID string) (models.WifiSignal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.signals[sensorID]
	return s, ok
}

type fakeSink struct {
	mu      sync.Mutex
	samples map[string]int
}

func (s *fakeSink) Append(sensorID string, sig models.WifiSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == nil {
		s.samples = make(map[string]int)
	}
	s.samples[sensorID]++
}

func (s *fakeSink) count(sensorID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples[sensorID]
}
