package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Channel описывает часть *amqp.Channel, нужную для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher публикует события подписок в обменник. Routing key совпадает с типом события.
type Publisher struct {
	ch       Channel
	exchange string
}

// NewPublisher создаёт Publisher поверх канала.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish сериализует событие в JSON и отправляет его как persistent-сообщение.
func (p *Publisher) Publish(ctx context.Context, event models.SubscriptionEvent) error {
	const op = "rabbitmq.Publish"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(
		p.exchange,
		string(event.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Type:         string(event.Type),
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NoopPublisher отбрасывает события. Используется, когда RabbitMQ не настроен.
type NoopPublisher struct{}

// Publish ничего не делает.
func (NoopPublisher) Publish(context.Context, models.SubscriptionEvent) error {
	return nil
}
