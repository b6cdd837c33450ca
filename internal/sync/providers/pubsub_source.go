package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/pubsub"

	wsync "github.com/ocx/backend/internal/sync"
)

// PubSubSource subscribes to a Cloud Pub/Sub topic carrying externally
// published sync events (e.g. a webhook receiver forwarding provider push
// notifications) and feeds them into an EventQueue.
type PubSubSource struct {
	sub    *pubsub.Subscription
	queue  *wsync.EventQueue
	logger *log.Logger
}

// NewPubSubSource subscribes (creating the subscription if absent) and
// returns a source ready to Run.
func NewPubSubSource(ctx context.Context, projectID, topicID, subID string, queue *wsync.EventQueue) (*PubSubSource, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}

	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscription.Exists: %w", err)
	}
	if !exists {
		topic := client.Topic(topicID)
		sub, err = client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic})
		if err != nil {
			return nil, fmt.Errorf("CreateSubscription: %w", err)
		}
	}

	return &PubSubSource{
		sub:    sub,
		queue:  queue,
		logger: log.New(os.Stdout, "[SYNC-PUBSUB] ", log.LstdFlags),
	}, nil
}

// Run blocks, receiving messages and enqueuing each as a SyncEvent until ctx
// is canceled.
func (s *PubSubSource) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var event wsync.SyncEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Printf("failed to decode sync event: %v", err)
			msg.Nack()
			return
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		s.queue.Enqueue(event)
		msg.Ack()
	})
}
