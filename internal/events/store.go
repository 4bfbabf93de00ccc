package events

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRecorder persists events into the domain_events table.
type PGRecorder struct {
	Pool *pgxpool.Pool
}

// Record implements Recorder.
func (r *PGRecorder) Record(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	_, err = r.Pool.Exec(ctx,
		`INSERT INTO domain_events (topic, payload, created_at) VALUES ($1, $2, $3)`,
		evt.Topic, payload, evt.OccurredAt)
	return err
}
