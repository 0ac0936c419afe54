package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// DispatchRecord is the audit-trail record emitted after each successful
// workflow dispatch.
type DispatchRecord struct {
	Event          string            `json:"event"`
	Repository     string            `json:"repository"`
	AutomationRepo string            `json:"automation_repo"`
	Workflow       string            `json:"workflow_filename"`
	Branch         string            `json:"workflow_branch"`
	SourceBranch   string            `json:"source_branch"`
	Inputs         map[string]string `json:"inputs"`
	Timestamp      string            `json:"timestamp"`
}

// Auditor mirrors dispatch records to one or more configured sinks. The
// relay treats it as best-effort: a failed audit write never fails the
// inbound request.
type Auditor interface {
	Record(ctx context.Context, record DispatchRecord) error
	Close() error
}

// NopAuditor discards all records. Used when no audit drivers are
// configured.
type NopAuditor struct{}

func (NopAuditor) Record(context.Context, DispatchRecord) error { return nil }
func (NopAuditor) Close() error                                 { return nil }

// AuditDriverFactory builds a watermill publisher for a named driver.
type AuditDriverFactory func(cfg AuditConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var auditDriverFactories = map[string]AuditDriverFactory{
	"gochannel": buildGoChannelDriver,
}

// RegisterAuditDriver registers a custom audit driver under name.
func RegisterAuditDriver(name string, factory AuditDriverFactory) {
	if name == "" || factory == nil {
		return
	}
	auditDriverFactories[strings.ToLower(name)] = factory
}

// NewAuditor builds the audit trail from configuration. With no drivers
// listed the trail is disabled and a NopAuditor is returned. A driver that
// fails to initialize is an error: an operator who configured a sink wants
// to know it is not receiving records.
func NewAuditor(cfg AuditConfig) (Auditor, error) {
	if len(cfg.Drivers) == 0 {
		return NopAuditor{}, nil
	}

	logger := watermill.NewStdLogger(false, false)
	trail := &auditTrail{topic: cfg.Topic}
	for _, driver := range cfg.Drivers {
		sink, err := newAuditSink(cfg, strings.ToLower(strings.TrimSpace(driver)), logger)
		if err != nil {
			trail.Close()
			return nil, fmt.Errorf("audit driver %s: %w", driver, err)
		}
		trail.sinks = append(trail.sinks, sink)
	}
	return trail, nil
}

type auditSink struct {
	name      string
	publisher message.Publisher
	closeFn   func() error
}

type auditTrail struct {
	topic string
	sinks []auditSink
}

func (t *auditTrail) Record(ctx context.Context, record DispatchRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	var errs error
	for _, sink := range t.sinks {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("event", record.Event)
		msg.Metadata.Set("repository", record.Repository)
		msg.Metadata.Set("workflow", record.Workflow)
		msg.SetContext(ctx)
		if publishErr := sink.publisher.Publish(t.topic, msg); publishErr != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", sink.name, publishErr))
		}
	}
	return errs
}

func (t *auditTrail) Close() error {
	var errs error
	for _, sink := range t.sinks {
		errs = errors.Join(errs, sink.publisher.Close())
		if sink.closeFn != nil {
			errs = errors.Join(errs, sink.closeFn())
		}
	}
	return errs
}

func newAuditSink(cfg AuditConfig, driver string, logger watermill.LoggerAdapter) (auditSink, error) {
	switch driver {
	case "http":
		mode := strings.ToLower(cfg.HTTP.Mode)
		if mode != "topic_url" && mode != "base_url" {
			return auditSink{}, fmt.Errorf("unsupported http mode: %s", cfg.HTTP.Mode)
		}
		if mode == "base_url" && cfg.HTTP.BaseURL == "" {
			return auditSink{}, fmt.Errorf("http base_url is required for base_url mode")
		}
		pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*http.Request, error) {
				target, err := httpTargetURL(cfg.HTTP, topic)
				if err != nil {
					return nil, err
				}
				return wmhttp.DefaultMarshalMessageFunc(target, msg)
			},
		}, logger)
		if err != nil {
			return auditSink{}, err
		}
		return auditSink{name: driver, publisher: pub}, nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return auditSink{}, fmt.Errorf("kafka brokers are required")
		}
		pub, err := wmkafka.NewPublisher(cfg.Kafka.Brokers, wmkafka.DefaultMarshaler{}, nil, logger)
		if err != nil {
			return auditSink{}, err
		}
		return auditSink{name: driver, publisher: pub}, nil
	case "nats":
		if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
			return auditSink{}, fmt.Errorf("nats cluster_id and client_id are required")
		}
		natsCfg := wmnats.StreamingPublisherConfig{
			ClusterID: cfg.NATS.ClusterID,
			ClientID:  cfg.NATS.ClientID,
			Marshaler: wmnats.GobMarshaler{},
		}
		if cfg.NATS.URL != "" {
			natsCfg.StanOptions = append(natsCfg.StanOptions, stan.NatsURL(cfg.NATS.URL))
		}
		pub, err := wmnats.NewStreamingPublisher(natsCfg, logger)
		if err != nil {
			return auditSink{}, err
		}
		return auditSink{name: driver, publisher: pub}, nil
	case "amqp":
		if cfg.AMQP.URL == "" {
			return auditSink{}, fmt.Errorf("amqp url is required")
		}
		amqpCfg, err := amqpConfigFromMode(cfg.AMQP.URL, cfg.AMQP.Mode)
		if err != nil {
			return auditSink{}, err
		}
		pub, err := wmamqp.NewPublisher(amqpCfg, logger)
		if err != nil {
			return auditSink{}, err
		}
		return auditSink{name: driver, publisher: pub}, nil
	case "sql":
		if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
			return auditSink{}, fmt.Errorf("sql driver and dsn are required")
		}
		schemaAdapter, err := sqlSchemaAdapter(cfg.SQL.Dialect)
		if err != nil {
			return auditSink{}, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return auditSink{}, err
		}
		pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
			SchemaAdapter:        schemaAdapter,
			AutoInitializeSchema: cfg.SQL.AutoInitializeSchema,
		}, logger)
		if err != nil {
			_ = db.Close()
			return auditSink{}, err
		}
		return auditSink{name: driver, publisher: pub, closeFn: db.Close}, nil
	case "jobqueue":
		pub, err := newJobQueueSink(cfg.JobQueue)
		if err != nil {
			return auditSink{}, err
		}
		return auditSink{name: driver, publisher: pub}, nil
	default:
		if factory, ok := auditDriverFactories[driver]; ok {
			pub, closeFn, err := factory(cfg, logger)
			if err != nil {
				return auditSink{}, err
			}
			return auditSink{name: driver, publisher: pub, closeFn: closeFn}, nil
		}
		return auditSink{}, fmt.Errorf("unsupported audit driver: %s", driver)
	}
}

func buildGoChannelDriver(cfg AuditConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	pub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
			Persistent:                     cfg.GoChannel.Persistent,
			BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
		},
		logger,
	)
	return pub, nil, nil
}

func amqpConfigFromMode(url, mode string) (wmamqp.Config, error) {
	switch strings.ToLower(mode) {
	case "", "durable_queue":
		return wmamqp.NewDurableQueueConfig(url), nil
	case "nondurable_queue":
		return wmamqp.NewNonDurableQueueConfig(url), nil
	case "durable_pubsub":
		return wmamqp.NewDurablePubSubConfig(url, nil), nil
	case "nondurable_pubsub":
		return wmamqp.NewNonDurablePubSubConfig(url, nil), nil
	default:
		return wmamqp.Config{}, fmt.Errorf("unsupported amqp mode: %s", mode)
	}
}

func sqlSchemaAdapter(dialect string) (wmsql.SchemaAdapter, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return wmsql.DefaultPostgreSQLSchema{}, nil
	case "mysql":
		return wmsql.DefaultMySQLSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
}

func httpTargetURL(cfg HTTPConfig, topic string) (string, error) {
	switch strings.ToLower(cfg.Mode) {
	case "topic_url":
		if topic == "" {
			return "", fmt.Errorf("http topic url is empty")
		}
		return topic, nil
	case "base_url":
		if cfg.BaseURL == "" {
			return "", fmt.Errorf("http base_url is empty")
		}
		return strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(topic, "/"), nil
	default:
		return "", fmt.Errorf("unsupported http mode: %s", cfg.Mode)
	}
}
