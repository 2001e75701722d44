package pubsub

import (
	"context"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Publisher sends messages to a single topic.
type Publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) PublishResult
	Stop()
}

// PublishResult blocks until the server acknowledges or rejects a message.
type PublishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

// OrderedPublisher returns a Publisher for the topic with message ordering
// enabled, or nil when the client is not configured.
func (c *Client) OrderedPublisher(name string) Publisher {
	p := c.Publisher(name)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return &orderedPublisher{pub: p}
}

type orderedPublisher struct {
	pub *pubsub.Publisher
}

func (o *orderedPublisher) Publish(ctx context.Context, msg *pubsub.Message) PublishResult {
	return &orderedResult{result: o.pub.Publish(ctx, msg), pub: o.pub, key: msg.OrderingKey}
}

func (o *orderedPublisher) Stop() { o.pub.Stop() }

// orderedResult resumes the ordering key after a failure. Pub/Sub pauses a
// key on error and rejects every later message for it until resumed.
type orderedResult struct {
	result *pubsub.PublishResult
	pub    *pubsub.Publisher
	key    string
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.result.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
