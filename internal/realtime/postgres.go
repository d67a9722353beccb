package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
)

// Channel is the LISTEN/NOTIFY channel row changes travel on.
const Channel = "portal_changes"

// maxPayload stays below the 8000 byte NOTIFY limit.
const maxPayload = 7900

// ReconnectDelay is the fixed pause before the listener reconnects.
var ReconnectDelay = 5 * time.Second

// keyFields survive payload trimming so subscribers can still scope events.
var keyFields = []string{"id", "project_id", "article_id", "user_id", "brand", "slug", "is_public_to_client"}

// PGNotifier publishes events with pg_notify so every server process
// listening on the database receives them, including writes made by the CLI.
type PGNotifier struct {
	db *sqlx.DB
}

func NewPGNotifier(db *sqlx.DB) *PGNotifier {
	return &PGNotifier{db: db}
}

func (n *PGNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := encodePayload(ev)
	if err != nil {
		return err
	}

	_, err = n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, payload)
	if err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

func encodePayload(ev Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	if len(data) <= maxPayload {
		return string(data), nil
	}

	ev.Record = trimRecord(ev.Record)
	ev.OldRecord = trimRecord(ev.OldRecord)
	data, err = json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return string(data), nil
}

func trimRecord(record map[string]any) map[string]any {
	if record == nil {
		return nil
	}
	trimmed := make(map[string]any, len(keyFields))
	for _, k := range keyFields {
		if v, ok := record[k]; ok {
			trimmed[k] = v
		}
	}
	return trimmed
}

// Listen feeds notifications from the database into pub until ctx is done.
// A dropped connection is retried after ReconnectDelay.
func Listen(ctx context.Context, connString string, pub Publisher) error {
	for {
		err := listenOnce(ctx, connString, pub)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("realtime listener disconnected", "error", err, "retry_in", ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(ReconnectDelay):
		}
	}
}

func listenOnce(ctx context.Context, connString string, pub Publisher) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("realtime listener started", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		ev, err := decodePayload(n.Payload)
		if err != nil {
			slog.Warn("realtime discarding malformed notification", "error", err)
			continue
		}

		err = pub.Publish(ctx, ev)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("realtime failed to dispatch notification", "error", err, "table", ev.Table)
		}
	}
}

func decodePayload(payload string) (Event, error) {
	var ev Event
	err := json.Unmarshal([]byte(payload), &ev)
	if err != nil {
		return Event{}, err
	}
	if ev.Table == "" {
		return Event{}, errors.New("notification without table")
	}
	return ev, nil
}
