package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lib/pq"
)

// jobQueueSink inserts audit records as jobs into a river-style Postgres
// jobs table, so a downstream worker pool can process dispatch records
// with the queue's own retry semantics.
type jobQueueSink struct {
	db  *sql.DB
	cfg JobQueueConfig
}

func newJobQueueSink(cfg JobQueueConfig) (*jobQueueSink, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jobqueue dsn is required")
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &jobQueueSink{db: db, cfg: cfg}, nil
}

// Publish inserts one job row per message. The message payload becomes the
// job args; the topic and routing metadata travel in the job metadata.
func (s *jobQueueSink) Publish(topic string, msgs ...*message.Message) error {
	table := strings.TrimSpace(s.cfg.Table)
	if table == "" {
		table = "river_job"
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		table,
	)

	for _, msg := range msgs {
		metadata, err := json.Marshal(map[string]string{
			"topic":      topic,
			"event":      msg.Metadata.Get("event"),
			"repository": msg.Metadata.Get("repository"),
		})
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(
			msg.Context(),
			query,
			string(msg.Payload),
			s.cfg.Kind,
			s.cfg.MaxAttempts,
			string(metadata),
			s.cfg.Priority,
			s.cfg.Queue,
			pq.Array(s.cfg.Tags),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *jobQueueSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
