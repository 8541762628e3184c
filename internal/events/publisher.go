// Package events publishes transcript events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"discord-transcriber/internal/models"
	"discord-transcriber/internal/observability/metrics"
)

// Validator rejects malformed events before they are written.
type Validator interface {
	Validate(event any) error
}

// Publisher writes voice message transcripts and live utterances to separate topics.
type Publisher struct {
	writerTranscripts *kafka.Writer
	writerLive        *kafka.Writer
	principal         string
	topicTranscripts  string
	topicLive         string
	enabled           bool
	validator         Validator
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicTranscripts string
	TopicLive        string
	Principal        string
	Enabled          bool
}

// New creates a publisher. A nil or disabled config yields a log-only publisher.
func New(cfg *Config, validator Validator) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, validator: validator, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicTranscripts: cfg.TopicTranscripts,
			topicLive:        cfg.TopicLive,
			enabled:          false,
			validator:        validator,
			metrics:          m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscripts", cfg.TopicTranscripts).
		Str("topicLive", cfg.TopicLive).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscripts: newWriter(cfg.Brokers, cfg.TopicTranscripts, transport),
		writerLive:        newWriter(cfg.Brokers, cfg.TopicLive, transport),
		principal:         cfg.Principal,
		topicTranscripts:  cfg.TopicTranscripts,
		topicLive:         cfg.TopicLive,
		enabled:           true,
		validator:         validator,
		metrics:           m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishTranscript is keyed by the source message id.
func (p *Publisher) PublishTranscript(ctx context.Context, event models.VoiceMessageTranscript) error {
	return p.publish(ctx, p.writerTranscripts, p.topicTranscripts, event.EventType, event.MessageID, event)
}

// PublishLive is keyed by guild so a guild's utterances stay ordered on one partition.
func (p *Publisher) PublishLive(ctx context.Context, event models.LiveUtterance) error {
	return p.publish(ctx, p.writerLive, p.topicLive, event.EventType, event.GuildID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if p.validator != nil {
		if err := p.validator.Validate(event); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Event failed validation")
			p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
			return err
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscripts != nil {
		if e := p.writerTranscripts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcripts writer")
			err = e
		}
	}
	if p.writerLive != nil {
		if e := p.writerLive.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing live writer")
			err = e
		}
	}
	return err
}
