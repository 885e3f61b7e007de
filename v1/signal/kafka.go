package signal

import (
	"context"
	"sync"

	sarama "github.com/IBM/sarama"
)

type kafkaListener struct {
	pc    sarama.PartitionConsumer
	chans []chan struct{}
}

// KafkaBus implements Bus on Kafka. Each key maps to a topic; wakeups are
// tiny marker messages consumed from the newest offset, so only releases that
// happen while someone is listening are seen. That matches the bus contract:
// lock backends always recheck the lock after a wakeup.
type KafkaBus struct {
	producer sarama.SyncProducer
	consumer sarama.Consumer

	mu        sync.Mutex
	listeners map[string]*kafkaListener
}

// NewKafkaBus creates a KafkaBus connecting to the given brokers.
func NewKafkaBus(brokers []string, cfg *sarama.Config) (*KafkaBus, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = producer.Close()
		_ = client.Close()
		return nil, err
	}
	return &KafkaBus{
		producer:  producer,
		consumer:  consumer,
		listeners: make(map[string]*kafkaListener),
	}, nil
}

func topicName(key string) string { return "latch.wake." + key }

// Notify implements Bus.Notify.
func (b *KafkaBus) Notify(ctx context.Context, key string) error {
	msg := &sarama.ProducerMessage{
		Topic: topicName(key),
		Value: sarama.StringEncoder("1"),
	}
	_, _, err := b.producer.SendMessage(msg)
	return err
}

// Listen implements Bus.Listen.
func (b *KafkaBus) Listen(ctx context.Context, key string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	l := b.listeners[key]
	if l == nil {
		pc, err := b.consumer.ConsumePartition(topicName(key), 0, sarama.OffsetNewest)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		l = &kafkaListener{pc: pc}
		b.listeners[key] = l
		go func() {
			for range pc.Messages() {
				// Fan out under the mutex so Forget cannot close a
				// channel between snapshot and send.
				b.mu.Lock()
				if cur := b.listeners[key]; cur != nil {
					for _, c := range cur.chans {
						select {
						case c <- struct{}{}:
						default:
						}
					}
				}
				b.mu.Unlock()
			}
		}()
	}
	l.chans = append(l.chans, ch)
	b.mu.Unlock()
	return ch, nil
}

// Forget implements Bus.Forget.
func (b *KafkaBus) Forget(ctx context.Context, key string, ch chan struct{}) error {
	b.mu.Lock()
	l := b.listeners[key]
	if l == nil {
		b.mu.Unlock()
		return nil
	}
	for i, c := range l.chans {
		if c == ch {
			l.chans[i] = l.chans[len(l.chans)-1]
			l.chans = l.chans[:len(l.chans)-1]
			close(c)
			break
		}
	}
	var pc sarama.PartitionConsumer
	if len(l.chans) == 0 {
		pc = l.pc
		delete(b.listeners, key)
	}
	b.mu.Unlock()
	if pc != nil {
		return pc.Close()
	}
	return nil
}

// Close shuts down the producer and consumer.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	for key, l := range b.listeners {
		_ = l.pc.Close()
		for _, c := range l.chans {
			close(c)
		}
		delete(b.listeners, key)
	}
	b.mu.Unlock()
	if err := b.producer.Close(); err != nil {
		_ = b.consumer.Close()
		return err
	}
	return b.consumer.Close()
}
