package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// QueueConfig описывает очередь, привязанную к обменнику событий.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// EventsQueue возвращает очередь, которая получает все события подписок из exchange.
func EventsQueue(exchange string) QueueConfig {
	return QueueConfig{
		QueueName:  exchange + ".events",
		RoutingKey: "subscription.#",
	}
}

// SetupChannel открывает канал и объявляет topic-обменник exchange
// вместе с привязанными к нему очередями.
func SetupChannel(conn *amqp.Connection, exchange string, queues ...QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		if err = ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
