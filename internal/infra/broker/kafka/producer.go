package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

// Record is one keyed event record bound for a topic. The key selects the
// partition, so records sharing a key keep their relative order.
type Record struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

// Producer publishes records through a synchronous, idempotent Kafka producer.
type Producer struct {
	sync sarama.SyncProducer
}

// NewProducer connects to the brokers with acks=all.
func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync}, nil
}

// Publish sends one record and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, rec Record) error {
	var hs []sarama.RecordHeader
	for k, v := range rec.Headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	msg := &sarama.ProducerMessage{
		Topic:   rec.Topic,
		Key:     sarama.StringEncoder(rec.Key),
		Value:   sarama.ByteEncoder(rec.Payload),
		Headers: hs,
	}
	_, _, err := p.sync.SendMessage(msg)
	return err
}

// Close releases the producer.
func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
