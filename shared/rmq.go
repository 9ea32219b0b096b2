package shared

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RMQueue struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	Queue      amqp.Queue
}

func NewRMQueue(url string, queueName string) (*RMQueue, error) {
	q := &RMQueue{}
	var err error
	q.Connection, err = amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	q.Channel, err = q.Connection.Channel()
	if err != nil {
		q.Connection.Close()
		return nil, err
	}
	q.Queue, err = q.Channel.QueueDeclare(queueName, false, false, false, false, nil)
	if err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

func (q *RMQueue) Close() {
	q.Channel.Close()
	q.Connection.Close()
}

// Publish sends a JSON body to the queue through the default exchange.
func (q *RMQueue) Publish(ctx context.Context, body []byte) error {
	return q.Channel.PublishWithContext(ctx, "", q.Queue.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (q *RMQueue) Consume() (<-chan amqp.Delivery, error) {
	return q.Channel.Consume(q.Queue.Name, "", false, false, false, false, nil)
}
