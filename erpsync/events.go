package erpsync

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/frete360/frete_backend/config"
)

const defaultSyncEventsTopic = "erp-sync-completed"

// Publisher announces committed syncs to downstream consumers (reports, BI).
type Publisher interface {
	PublishSyncCompleted(ctx context.Context, ev SyncEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishSyncCompleted(context.Context, SyncEvent) error { return nil }

type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher resolves the topic from ERP_SYNC_EVENTS_TOPIC, creating it if missing.
func NewPubSubPublisher(ctx context.Context) (*PubSubPublisher, error) {
	topicName := strings.TrimSpace(os.Getenv("ERP_SYNC_EVENTS_TOPIC"))
	if topicName == "" {
		topicName = defaultSyncEventsTopic
	}
	client, err := config.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, topicName)
	if err != nil {
		return nil, err
	}
	return &PubSubPublisher{topic: topic}, nil
}

func (p *PubSubPublisher) PublishSyncCompleted(ctx context.Context, ev SyncEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"entity":         string(ev.Entity),
			"correlation_id": ev.CorrelationId,
		},
	})
	_, err = res.Get(ctx)
	return err
}
