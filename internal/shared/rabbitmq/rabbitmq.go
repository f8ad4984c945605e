package rabbitmq

import (
	"github.com/rabbitmq/amqp091-go"
)

// Client wraps the RabbitMQ connection and channel
type Client struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// Message represents a consumed RabbitMQ message
type Message struct {
	Body       []byte
	RoutingKey string
	delivery   amqp091.Delivery
}

// Ack acknowledges a message
func (m *Message) Ack() error {
	return m.delivery.Ack(false)
}

// Nack negative acknowledges a message, optionally requeueing it
func (m *Message) Nack(requeue bool) error {
	return m.delivery.Nack(false, requeue)
}

// NewClient dials RabbitMQ and opens a channel
func NewClient(url string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Client{
		conn:    conn,
		channel: channel,
	}, nil
}

// DeclareTopology declares a durable topic exchange with a bound queue
func (c *Client) DeclareTopology(exchange, queue, routingKey string) error {
	if err := c.channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if _, err := c.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	return c.channel.QueueBind(queue, routingKey, exchange, false, nil)
}

// Consume starts consuming messages from a queue with manual acknowledgement
func (c *Client) Consume(queue, consumerTag string) (<-chan Message, error) {
	msgs, err := c.channel.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}

	messageChan := make(chan Message)
	go func() {
		for d := range msgs {
			messageChan <- Message{
				Body:       d.Body,
				RoutingKey: d.RoutingKey,
				delivery:   d,
			}
		}
		close(messageChan)
	}()

	return messageChan, nil
}

// Publish publishes a JSON message to an exchange
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	return c.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Close closes the channel and connection
func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
