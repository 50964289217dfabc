package queue

import (
	"context"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const defaultPublishTimeout = 10 * time.Second

// PubSub carries jobs over a Google Cloud Pub/Sub topic and subscription.
// Redelivery is driven by Nack; DeliveryAttempt is only populated when the
// subscription has a dead-letter policy.
type PubSub struct {
	publisher  *pubsub.Publisher
	subscriber *pubsub.Subscriber
	maxRetries int
}

// NewPubSub wires a publisher and/or subscriber. Either may be nil when the
// process only produces or only consumes.
func NewPubSub(publisher *pubsub.Publisher, subscriber *pubsub.Subscriber, maxRetries int) (*PubSub, error) {
	if publisher == nil && subscriber == nil {
		return nil, errors.New("pubsub publisher or subscriber required")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &PubSub{publisher: publisher, subscriber: subscriber, maxRetries: maxRetries}, nil
}

// Enqueue publishes the job and waits for the server ack.
func (q *PubSub) Enqueue(ctx context.Context, job Job) error {
	if q.publisher == nil {
		return errors.New("pubsub publisher not configured")
	}
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := q.publisher.Publish(publishCtx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"job_id":      job.ID,
			"contract_id": job.ContractID.String(),
		},
	})
	_, err = result.Get(publishCtx)
	return err
}

// Run receives messages until ctx is canceled. Concurrency is bounded by the
// subscriber's receive settings.
func (q *PubSub) Run(ctx context.Context, concurrency int, handler Handler) error {
	if q.subscriber == nil {
		return errors.New("pubsub subscriber not configured")
	}
	if handler == nil {
		return errors.New("handler required")
	}
	if concurrency > 0 {
		q.subscriber.ReceiveSettings.MaxOutstandingMessages = concurrency
	}
	return q.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if q.deliver(ctx, msg.Data, msg.DeliveryAttempt, handler) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// deliver runs the handler and reports whether the message should be acked.
func (q *PubSub) deliver(ctx context.Context, data []byte, deliveryAttempt *int, handler Handler) bool {
	job, err := decodeJob(data)
	if err != nil {
		return true
	}
	job.Attempt = 1
	if deliveryAttempt != nil && *deliveryAttempt > 0 {
		job.Attempt = *deliveryAttempt
	}
	job.LastAttempt = job.Attempt >= q.maxRetries

	err = handler(ctx, job)
	return err == nil || job.LastAttempt || IsPermanent(err)
}
