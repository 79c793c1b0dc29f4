package coordination

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishSubscribe(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()

	ch, unsubscribe, err := m.Subscribe(ctx, "topic")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if err := m.Publish(ctx, "topic", "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Payload != "hello" {
			t.Fatalf("expected payload 'hello', got %q", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestInMemorySetGetExpiry(t *testing.T) {
	now := time.Now()
	m := NewInMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("expected to read back v, got %q ok=%v", v, ok)
	}

	m.now = func() time.Time { return now.Add(time.Second) }
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected key to have expired")
	}
}

func TestInMemoryCampaignSingleLeader(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()

	won1, _ := m.Campaign(ctx, "election", "node-a", time.Minute)
	won2, _ := m.Campaign(ctx, "election", "node-b", time.Minute)
	if !won1 {
		t.Fatalf("expected first candidate to win")
	}
	if won2 {
		t.Fatalf("expected second candidate to lose while first holds the lock")
	}

	leader, _ := m.Leader(ctx, "election")
	if leader != "node-a" {
		t.Fatalf("expected node-a to be leader, got %q", leader)
	}
}

func TestInMemoryResignAllowsNewLeader(t *testing.T) {
	m := NewInMemory()
	ctx := context.Background()

	m.Campaign(ctx, "election", "node-a", time.Minute)
	if err := m.Resign(ctx, "election", "node-a"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	won, _ := m.Campaign(ctx, "election", "node-b", time.Minute)
	if !won {
		t.Fatalf("expected node-b to win after node-a resigned")
	}
}

func TestInMemoryClusterMembership(t *testing.T) {
	now := time.Now()
	m := NewInMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.JoinCluster(ctx, "node-a", time.Minute)
	m.JoinCluster(ctx, "node-b", 10*time.Millisecond)

	m.now = func() time.Time { return now.Add(time.Second) }
	members, err := m.Members(ctx)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0] != "node-a" {
		t.Fatalf("expected only node-a to remain live, got %v", members)
	}
}
