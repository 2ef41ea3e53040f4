/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/config"
	"github.com/telekom/regression-notifier/pkg/metrics"
	"github.com/telekom/regression-notifier/pkg/notifier"
	"github.com/telekom/regression-notifier/pkg/record"
	"github.com/telekom/regression-notifier/pkg/system"
)

const (
	minFetchBytes = 1
	maxFetchBytes = 10 << 20
)

// Evaluator decides on and sends the regression report of a build.
type Evaluator interface {
	Evaluate(rec build.Record) notifier.Decision
}

// MessageReader is the part of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader creates a consumer-group reader for the configured topic.
// Offsets are committed explicitly by Consumer.
func NewReader(cfg config.Kafka, log *zap.SugaredLogger) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("Kafka topic is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("Kafka consumer group is required")
	}
	dialer, err := newDialer(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.Named("kafka")

	log.Infow("Kafka reader created",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"groupID", cfg.GroupID,
		"tls_enabled", cfg.TLS.Enabled,
		"sasl_enabled", cfg.SASL.Mechanism != "")

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		Dialer:      dialer,
		MinBytes:    minFetchBytes,
		MaxBytes:    maxFetchBytes,
		Logger:      kafka.LoggerFunc(log.Debugf),
		ErrorLogger: kafka.LoggerFunc(log.Errorf),
	}), nil
}

// Consumer evaluates every build event read from a MessageReader.
type Consumer struct {
	reader    MessageReader
	evaluator Evaluator
	logRoot   string
	log       *zap.SugaredLogger
}

// NewConsumer creates a Consumer. Events may only reference console logs
// inside consoleLogRoot; empty rejects events that reference one.
func NewConsumer(reader MessageReader, evaluator Evaluator, consoleLogRoot string, log *zap.SugaredLogger) *Consumer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Consumer{reader: reader, evaluator: evaluator, logRoot: consoleLogRoot, log: log.Named("consumer")}
}

// Run consumes until ctx is cancelled or the reader fails. Each message is
// evaluated once and its offset committed afterwards, whatever the decision.
// Undecodable messages are committed without evaluation.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Consuming build events")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.log.Info("Stopped consuming build events")
				return nil
			}
			return fmt.Errorf("failed to fetch from Kafka (%s): %w", classifyKafkaError(err), err)
		}

		c.handle(msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset %d of partition %d (%s): %w",
				msg.Offset, msg.Partition, classifyKafkaError(err), err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}

func (c *Consumer) handle(msg kafka.Message) {
	log := c.log.With("partition", msg.Partition, "offset", msg.Offset)

	ev, err := record.DecodeEvent(msg.Value)
	if err != nil {
		metrics.EventsReceived.WithLabelValues(metrics.SourceKafka, metrics.EventInvalid).Inc()
		log.Warnw("Skipping undecodable build event", "error", err)
		return
	}
	log = log.With(system.BuildFields(ev.Job, ev.Number, ev.ID)...)

	sink := system.NewSinkWriter(log)
	defer sink.Flush()
	rec, err := record.FromEvent(ev, record.EventOptions{Sink: sink, ConsoleLogRoot: c.logRoot})
	if err != nil {
		metrics.EventsReceived.WithLabelValues(metrics.SourceKafka, metrics.EventInvalid).Inc()
		log.Warnw("Skipping invalid build event", "error", err)
		return
	}
	metrics.EventsReceived.WithLabelValues(metrics.SourceKafka, metrics.EventAccepted).Inc()

	d := c.evaluator.Evaluate(rec)
	log.Debugw("Build event evaluated", "outcome", d.Outcome.String(), "reason", d.Reason)
}
