package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestFeed(t *testing.T) (*Feed, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	feed, err := NewFeed("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create feed: %v", err)
	}
	t.Cleanup(func() { feed.Close() })
	return feed, s
}

func TestNewFeed(t *testing.T) {
	feed, _ := setupTestFeed(t)
	if err := feed.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewFeedInvalidURL(t *testing.T) {
	if _, err := NewFeed("not-a-url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestPublishReachesSubscriberInOrder(t *testing.T) {
	feed, _ := setupTestFeed(t)
	ctx := context.Background()

	received := make(chan string, 4)
	unsubscribe, err := feed.Subscribe(ctx, "p1", func(payload []byte) {
		received <- string(payload)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsubscribe()

	for _, payload := range []string{`{"rev":1}`, `{"rev":2}`} {
		if err := feed.Publish(ctx, "p1", []byte(payload)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	for _, want := range []string{`{"rev":1}`, `{"rev":2}`} {
		select {
		case got := <-received:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSubscribeIsScopedToProject(t *testing.T) {
	feed, s := setupTestFeed(t)
	ctx := context.Background()

	received := make(chan string, 1)
	unsubscribe, err := feed.Subscribe(ctx, "p1", func(payload []byte) {
		received <- string(payload)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsubscribe()

	if err := feed.Publish(ctx, "p2", []byte("other")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	s.Publish("project:p1", "mine")

	select {
	case got := <-received:
		if got != "mine" {
			t.Fatalf("received message for another project: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	feed, s := setupTestFeed(t)
	ctx := context.Background()

	unsubscribe, err := feed.Subscribe(ctx, "p1", func([]byte) {})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if n := s.PubSubNumSub("project:p1")["project:p1"]; n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	unsubscribe()
	unsubscribe()

	deadline := time.Now().Add(2 * time.Second)
	for s.PubSubNumSub("project:p1")["project:p1"] != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription still registered after unsubscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
