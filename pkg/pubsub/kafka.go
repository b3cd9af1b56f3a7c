package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/flenzi/company-service/pkg/log"
)

const (
	kafkaDefaultPartitions = 4
	kafkaPollTimeoutMs     = 500
	kafkaFlushTimeoutMs    = 5000
	kafkaEventBuffer       = 100

	headerEventType = "event_type"
	headerEventID   = "event_id"
)

// KafkaPubSub carries domain events over Kafka. Every channel is one topic
// and messages are keyed by aggregate id, so the events of one product or
// user keep their order inside a partition.
type KafkaPubSub struct {
	cfg      KafkaConfig
	producer *kafka.Producer
	reported chan struct{}

	mu   sync.Mutex
	subs map[string]*kafkaSubscription
}

type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewKafkaPubSub connects a producer and makes sure the event topics exist.
// A failure to create topics is logged, not returned: brokers with topic
// auto-creation still work.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaPubSub{
		cfg:      cfg,
		producer: producer,
		reported: make(chan struct{}),
		subs:     make(map[string]*kafkaSubscription),
	}
	go k.watchDeliveries()

	if err := k.createTopics(Channels()); err != nil {
		logger := log.L()
		logger.Warn().Err(err).Str("brokers", cfg.Brokers).Msg("could not create event topics")
	}
	return k, nil
}

func (k *KafkaPubSub) createTopics(channels []string) error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.cfg.Partitions
	if partitions <= 0 {
		partitions = kafkaDefaultPartitions
	}

	specs := make([]kafka.TopicSpecification, 0, len(channels))
	for _, ch := range channels {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             channelToTopic(ch),
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	var errs []error
	for _, res := range results {
		switch res.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			errs = append(errs, fmt.Errorf("topic %s: %w", res.Topic, res.Error))
		}
	}
	return errors.Join(errs...)
}

// watchDeliveries logs messages the broker rejected. It ends when the
// producer is closed.
func (k *KafkaPubSub) watchDeliveries() {
	defer close(k.reported)

	logger := log.L()
	for ev := range k.producer.Events() {
		msg, ok := ev.(*kafka.Message)
		if !ok || msg.TopicPartition.Error == nil {
			continue
		}
		logger.Error().
			Err(msg.TopicPartition.Error).
			Str("topic", *msg.TopicPartition.Topic).
			Str("key", string(msg.Key)).
			Msg("event delivery failed")
	}
}

// Publish enqueues event on the channel's topic. Delivery is asynchronous;
// broker-side failures are only logged.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := channelToTopic(channel)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.AggregateID),
		Value:          value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerEventID, Value: []byte(event.ID.String())},
		},
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the topic backing channel.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return k.consume(ctx, channel, channelToTopic(channel))
}

// SubscribePattern consumes every topic whose channel matches the glob
// pattern.
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return k.consume(ctx, pattern, patternToTopicRegex(pattern))
}

// consume starts a consumer in its own group, so every subscription of this
// process sees every event. A second subscription under the same key
// replaces the first.
func (k *KafkaPubSub) consume(ctx context.Context, key, topic string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if old, ok := k.subs[key]; ok {
		old.stop()
		delete(k.subs, key)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.cfg.Brokers,
		"group.id":                k.groupID(key),
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{consumer: consumer, cancel: cancel, done: make(chan struct{})}
	k.subs[key] = sub

	out := make(chan *Event, kafkaEventBuffer)
	go sub.run(subCtx, out)
	return out, nil
}

func (k *KafkaPubSub) groupID(key string) string {
	base := k.cfg.GroupID
	if base == "" {
		base = "company-service"
	}
	return base + "-" + sanitizeGroupID(key)
}

// run polls until ctx ends or the consumer hits a fatal error, then closes
// the consumer and out.
func (s *kafkaSubscription) run(ctx context.Context, out chan<- *Event) {
	defer close(s.done)
	defer close(out)
	defer s.consumer.Close()

	logger := log.Ctx(ctx)
	for ctx.Err() == nil {
		switch ev := s.consumer.Poll(kafkaPollTimeoutMs).(type) {
		case *kafka.Message:
			if !forward(ctx, &logger, out, ev.Value, *ev.TopicPartition.Topic) {
				return
			}

		case kafka.Error:
			logger.Error().Err(ev).Bool("fatal", ev.IsFatal()).Msg("kafka consumer error")
			if ev.IsFatal() {
				return
			}
		}
	}
}

func (s *kafkaSubscription) stop() {
	s.cancel()
	<-s.done
}

// Unsubscribe stops the subscription registered under channel, if any.
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if sub, ok := k.subs[channel]; ok {
		sub.stop()
		delete(k.subs, channel)
	}
	return nil
}

// Close stops every subscription, flushes pending events and closes the
// producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	for key, sub := range k.subs {
		sub.stop()
		delete(k.subs, key)
	}
	k.mu.Unlock()

	if left := k.producer.Flush(kafkaFlushTimeoutMs); left > 0 {
		logger := log.L()
		logger.Warn().Int("pending", left).Msg("closing kafka producer with undelivered events")
	}
	k.producer.Close()
	<-k.reported
	return nil
}

var invalidGroupChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeGroupID makes s usable inside a consumer group id.
func sanitizeGroupID(s string) string {
	return invalidGroupChars.ReplaceAllString(s, "-")
}
