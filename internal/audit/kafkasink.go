package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig holds configuration for the Kafka audit producer.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Acks        string
	Compression string

	SASLMechanism string
	SASLUser      string
	SASLPassword  string

	TLSCAPath     string
	TLSSkipVerify bool
}

// KafkaSink produces audit records to Kafka keyed by record id for
// idempotent downstream consumption.
type KafkaSink struct {
	config   KafkaConfig
	producer *kafka.Producer
}

// NewKafkaSinkFromEnv creates a KafkaSink from KAFKA_* environment variables.
func NewKafkaSinkFromEnv() *KafkaSink {
	brokersStr := os.Getenv("KAFKA_BROKERS")
	if brokersStr == "" {
		brokersStr = "localhost:9092"
	}
	brokers := strings.Split(brokersStr, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	return &KafkaSink{
		config: KafkaConfig{
			Brokers:       brokers,
			Topic:         getEnvOr("KAFKA_TOPIC", "gate.verifications"),
			Acks:          getEnvOr("KAFKA_ACKS", "all"),
			Compression:   os.Getenv("KAFKA_COMPRESSION"),
			SASLMechanism: os.Getenv("KAFKA_SASL_MECHANISM"),
			SASLUser:      os.Getenv("KAFKA_SASL_USER"),
			SASLPassword:  os.Getenv("KAFKA_SASL_PASSWORD"),
			TLSCAPath:     os.Getenv("KAFKA_TLS_CA"),
			TLSSkipVerify: getBoolEnv("KAFKA_TLS_SKIP_VERIFY", false),
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Start(ctx context.Context) error {
	configMap := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(s.config.Brokers, ","),
		"acks":              s.config.Acks,
		"retries":           10,
		"retry.backoff.ms":  100,
		"batch.size":        16384,
		"linger.ms":         10,
	}

	if s.config.Compression != "" {
		configMap["compression.type"] = s.config.Compression
	}

	if s.config.SASLMechanism != "" {
		configMap["security.protocol"] = "SASL_SSL"
		configMap["sasl.mechanism"] = s.config.SASLMechanism
		if s.config.SASLUser != "" {
			configMap["sasl.username"] = s.config.SASLUser
		}
		if s.config.SASLPassword != "" {
			configMap["sasl.password"] = s.config.SASLPassword
		}
	}

	if s.config.TLSCAPath != "" {
		if s.config.SASLMechanism == "" {
			configMap["security.protocol"] = "SSL"
		}
		configMap["ssl.ca.location"] = s.config.TLSCAPath
	}
	if s.config.TLSSkipVerify {
		configMap["ssl.endpoint.identification.algorithm"] = "none"
	}

	producer, err := kafka.NewProducer(&configMap)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	s.producer = producer

	go s.handleDeliveryReports(ctx)
	return nil
}

func (s *KafkaSink) Enqueue(r Record) error {
	if s.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}

	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &s.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(r.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(r.Outcome)},
			{Key: "schema", Value: []byte("v1")},
		},
	}

	if err := s.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("produce record: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	remaining := s.producer.Flush(10 * 1000)
	if remaining > 0 {
		return fmt.Errorf("failed to flush %d remaining records", remaining)
	}
	s.producer.Close()
	return nil
}

func (s *KafkaSink) handleDeliveryReports(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.producer.Events():
			switch e := ev.(type) {
			case *kafka.Message:
				if e.TopicPartition.Error != nil {
					fmt.Fprintf(os.Stderr, "kafka delivery failed: %v\n", e.TopicPartition.Error)
				}
			case kafka.Error:
				fmt.Fprintf(os.Stderr, "kafka error: %v\n", e)
			}
		}
	}
}
