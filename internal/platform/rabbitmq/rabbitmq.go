package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/config"
)

const connectTimeout = 3 * time.Second

var ErrConnectionClosed = errors.New("rabbitmq connection closed")

// New dials the broker and declares the ingest queue, so both publisher and
// worker can rely on it existing.
func New(ctx context.Context, cfg config.RabbitMQConfig, name string) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(name)

	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat:  time.Duration(cfg.Heartbeat) * time.Second,
		Locale:     "en_US",
		Properties: props,
		Dial:       amqp.DefaultDial(connectTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		ch, err := conn.Channel()
		if err != nil {
			done <- fmt.Errorf("open rabbitmq channel failed: %w", err)
			return
		}
		defer ch.Close()
		done <- DeclareQueue(ch, cfg.IngestQueue)
	}()

	select {
	case <-checkCtx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq setup timeout: %w", checkCtx.Err())
	case err := <-done:
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func Healthy(conn *amqp.Connection) error {
	if conn == nil || conn.IsClosed() {
		return ErrConnectionClosed
	}
	return nil
}
