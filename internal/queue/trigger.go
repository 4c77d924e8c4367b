// Package queue provides the dispatch-trigger capability: a best-effort
// hand-off that asks something, somewhere, to drain queued deliveries.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

const TriggerQueueName = "dispatch_triggers"

// TriggerJob is the payload published for the worker.
type TriggerJob struct {
	BatchSize int `json:"batch_size"`
}

// DispatchTrigger asks for a dispatcher drain of up to batchSize
// deliveries. Implementations must be safe to call after a campaign
// has already flipped to sending: a failed trigger leaves the rows
// queued for a later drain, never rolls anything back.
type DispatchTrigger interface {
	Trigger(batchSize int) error
}

// AMQPTrigger publishes trigger jobs to a durable queue consumed by
// cmd/worker. A connection is dialed per publish; triggers are rare
// (campaign starts) and the worker holds the long-lived connection.
type AMQPTrigger struct {
	URL string
}

func (t *AMQPTrigger) Trigger(batchSize int) error {
	conn, err := amqp.Dial(t.URL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(TriggerQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	body, err := json.Marshal(TriggerJob{BatchSize: batchSize})
	if err != nil {
		return err
	}

	err = ch.Publish("", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// DirectTrigger drains a batch synchronously in-process. Process is a
// function field so the trigger stays decoupled from the dispatcher
// type.
type DirectTrigger struct {
	Process func(ctx context.Context, batchSize int) error
}

func (t *DirectTrigger) Trigger(batchSize int) error {
	return t.Process(context.Background(), batchSize)
}

// TriggerWithFallback tries the primary trigger and degrades to the
// fallback (typically a direct small-batch drain) when it errors, so a
// campaign keeps making forward progress without the external
// scheduler.
type TriggerWithFallback struct {
	Primary           DispatchTrigger
	Fallback          DispatchTrigger
	FallbackBatchSize int
}

func (t *TriggerWithFallback) Trigger(batchSize int) error {
	if t.Primary != nil {
		err := t.Primary.Trigger(batchSize)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Msg("primary dispatch trigger failed, falling back to direct drain")
	}
	if t.Fallback == nil {
		return fmt.Errorf("no dispatch trigger available")
	}
	size := t.FallbackBatchSize
	if size <= 0 {
		size = 10
	}
	return t.Fallback.Trigger(size)
}

var (
	_ DispatchTrigger = (*AMQPTrigger)(nil)
	_ DispatchTrigger = (*DirectTrigger)(nil)
	_ DispatchTrigger = (*TriggerWithFallback)(nil)
)
