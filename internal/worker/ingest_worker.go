package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docrag/internal/model"
	"docrag/internal/platform/rabbitmq"
)

// JobProcessor runs one ingestion job.
type JobProcessor interface {
	Process(ctx context.Context, job model.IngestJob) error
}

// IngestWorker consumes ingestion jobs from RabbitMQ, one at a time.
type IngestWorker struct {
	conn      *amqp.Connection
	processor JobProcessor
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, processor JobProcessor, queueName string) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					log.Printf("ingest worker: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

// handle decodes and runs one delivery. A returned error means the message
// is dropped rather than requeued.
func (w *IngestWorker) handle(ctx context.Context, body []byte) error {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode ingest job failed: %w", err)
	}
	if job.ID == "" {
		return fmt.Errorf("decode ingest job failed: missing id")
	}
	if err := w.processor.Process(ctx, job); err != nil {
		return fmt.Errorf("process ingest job %s failed: %w", job.ID, err)
	}
	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
