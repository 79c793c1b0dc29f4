// Package coordination provides RipTide's distributed coordination
// port: pub/sub, a TTL'd key-value cache, leader election, and
// cluster membership, behind one interface with two implementations —
// an in-memory one for single-process deployments and tests, and a
// Redis-backed one (coordination/redis.go) for multi-instance
// deployments. The interface generalizes the teacher's redis_registry
// service-discovery pattern (core/redis_registry.go) from "register a
// service endpoint" to the broader set of primitives a coordinator
// needs.
package coordination

import (
	"context"
	"sync"
	"time"
)

// Message is a pub/sub payload delivered to subscribers.
type Message struct {
	Channel string
	Payload string
}

// Coordinator is the distributed coordination port.
type Coordinator interface {
	// Publish broadcasts payload to channel's subscribers.
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe returns a channel of Messages for channel and an
	// unsubscribe function. The returned channel is closed once
	// unsubscribe is called or ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error)

	// Set stores value under key with the given TTL (zero means no
	// expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get retrieves value for key. ok is false if key is absent or
	// expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Campaign attempts to become leader for electionName, holding
	// leadership for ttl unless Resign is called first. Returns
	// whether this call won the election.
	Campaign(ctx context.Context, electionName, candidateID string, ttl time.Duration) (won bool, err error)
	// Resign releases leadership for electionName if candidateID
	// currently holds it.
	Resign(ctx context.Context, electionName, candidateID string) error
	// Leader returns the current leader's candidate ID for
	// electionName, or "" if none.
	Leader(ctx context.Context, electionName string) (string, error)

	// JoinCluster registers memberID as a live cluster member with a
	// heartbeat TTL; callers must call it again before ttl elapses to
	// stay listed.
	JoinCluster(ctx context.Context, memberID string, ttl time.Duration) error
	// Members lists currently live cluster members.
	Members(ctx context.Context) ([]string, error)
}

// InMemory is a single-process Coordinator backed by plain maps,
// suitable for tests and non-clustered deployments. Safe for
// concurrent use.
type InMemory struct {
	mu sync.Mutex

	kv      map[string]kvEntry
	leaders map[string]leaderEntry
	members map[string]time.Time

	subs map[string][]chan Message

	now func() time.Time
}

type kvEntry struct {
	value  string
	expiry time.Time // zero means no expiry
}

type leaderEntry struct {
	candidateID string
	expiry      time.Time
}

var _ Coordinator = (*InMemory)(nil)

// NewInMemory builds an empty InMemory coordinator.
func NewInMemory() *InMemory {
	return &InMemory{
		kv:      map[string]kvEntry{},
		leaders: map[string]leaderEntry{},
		members: map[string]time.Time{},
		subs:    map[string][]chan Message{},
		now:     time.Now,
	}
}

func (m *InMemory) Publish(ctx context.Context, channel, payload string) error {
	m.mu.Lock()
	subs := append([]chan Message{}, m.subs[channel]...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- Message{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

func (m *InMemory) Subscribe(ctx context.Context, channel string) (<-chan Message, func(), error) {
	ch := make(chan Message, 64)
	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			subs := m.subs[channel]
			for i, c := range subs {
				if c == ch {
					m.subs[channel] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			unsubscribe()
		}()
	}
	return ch, unsubscribe, nil
}

func (m *InMemory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiry time.Time
	if ttl > 0 {
		expiry = m.now().Add(ttl)
	}
	m.kv[key] = kvEntry{value: value, expiry: expiry}
	return nil
}

func (m *InMemory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.kv[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiry.IsZero() && m.now().After(entry.expiry) {
		delete(m.kv, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *InMemory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *InMemory) Campaign(ctx context.Context, electionName, candidateID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, held := m.leaders[electionName]
	if held && !entry.expiry.IsZero() && now.After(entry.expiry) {
		held = false
	}
	if held && entry.candidateID != candidateID {
		return false, nil
	}
	var expiry time.Time
	if ttl > 0 {
		expiry = now.Add(ttl)
	}
	m.leaders[electionName] = leaderEntry{candidateID: candidateID, expiry: expiry}
	return true, nil
}

func (m *InMemory) Resign(ctx context.Context, electionName, candidateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.leaders[electionName]; ok && entry.candidateID == candidateID {
		delete(m.leaders, electionName)
	}
	return nil
}

func (m *InMemory) Leader(ctx context.Context, electionName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.leaders[electionName]
	if !ok {
		return "", nil
	}
	if !entry.expiry.IsZero() && m.now().After(entry.expiry) {
		delete(m.leaders, electionName)
		return "", nil
	}
	return entry.candidateID, nil
}

func (m *InMemory) JoinCluster(ctx context.Context, memberID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expiry time.Time
	if ttl > 0 {
		expiry = m.now().Add(ttl)
	}
	m.members[memberID] = expiry
	return nil
}

func (m *InMemory) Members(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []string
	for id, expiry := range m.members {
		if !expiry.IsZero() && now.After(expiry) {
			delete(m.members, id)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
