// Package pubsub carries project revisions between clients over Redis
// channels.
package pubsub

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Feed publishes encoded revisions on one channel per project.
type Feed struct {
	client *redis.Client
	prefix string
}

// NewFeed connects to redisURL and verifies the connection.
func NewFeed(redisURL string) (*Feed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewFeedWithClient(client), nil
}

func NewFeedWithClient(client *redis.Client) *Feed {
	return &Feed{client: client, prefix: "project:"}
}

func (f *Feed) channel(projectID string) string {
	return f.prefix + projectID
}

func (f *Feed) Publish(ctx context.Context, projectID string, payload []byte) error {
	if err := f.client.Publish(ctx, f.channel(projectID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", projectID, err)
	}
	return nil
}

// Subscribe delivers every message published for projectID to onMessage, in
// publish order, until the returned function is called. The subscription is
// confirmed by the server before Subscribe returns.
func (f *Feed) Subscribe(ctx context.Context, projectID string, onMessage func([]byte)) (func(), error) {
	ps := f.client.Subscribe(ctx, f.channel(projectID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", projectID, err)
	}

	messages := ps.Channel()
	go func() {
		for msg := range messages {
			onMessage([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				log.Printf("pubsub: close subscription %s: %v", projectID, err)
			}
		})
	}, nil
}

func (f *Feed) Close() error {
	return f.client.Close()
}

func (f *Feed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}
