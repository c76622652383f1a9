package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"acctgate/pkg/domain"
	"acctgate/pkg/platform/sentinel"
)

// KafkaStore forwards events to a kafka topic for the external relay and
// indexer. Records are keyed by account address so one account's events stay
// ordered within a partition.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// NewKafkaStore connects to the brokers and ensures the topic exists.
func NewKafkaStore(ctx context.Context, brokers []string, topic string) (*KafkaStore, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %q: %w", topic, err)
	}

	return &KafkaStore{client: client, topic: topic}, nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Account.String()),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// ListByAccount is not served from kafka; wrap this store in a Fanout with a
// queryable primary instead.
func (s *KafkaStore) ListByAccount(context.Context, domain.Address) ([]Event, error) {
	return nil, sentinel.ErrUnavailable
}

func (s *KafkaStore) Close() {
	s.client.Close()
}

// Fanout appends to every store and lists from the first. Wiring is
// Fanout(memory, kafka): memory answers queries, kafka feeds the relay.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) ListByAccount(ctx context.Context, account domain.Address) ([]Event, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return f[0].ListByAccount(ctx, account)
}
