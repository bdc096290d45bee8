package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/shiva/tripmatch/internal/model"
	"github.com/shiva/tripmatch/migrations"
)

// DefaultNotifyChannel is the channel the trips trigger publishes on unless
// the schema was migrated with another one.
const DefaultNotifyChannel = migrations.DefaultNotifyChannel

// TripListener turns Postgres NOTIFY payloads from the trips trigger into
// model.TripChange values.
type TripListener struct {
	pool    *pgxpool.Pool
	channel string
	log     zerolog.Logger
}

// NewTripListener creates a listener on channel.
func NewTripListener(pool *pgxpool.Pool, channel string, log zerolog.Logger) *TripListener {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &TripListener{pool: pool, channel: channel, log: log}
}

// Run blocks until ctx is done, forwarding every change to sink. A dropped
// connection is re-established after a short back-off; changes committed while
// disconnected are lost, so sink is also called with a nil-trip "resync"
// change after each reconnect.
func (l *TripListener) Run(ctx context.Context, sink func(model.TripChange)) error {
	backoff := 500 * time.Millisecond
	first := true

	for {
		err := l.listen(ctx, sink, !first)
		if ctx.Err() != nil {
			return nil
		}
		first = false

		l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("trip listener disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (l *TripListener) listen(ctx context.Context, sink func(model.TripChange), resync bool) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("trip listener: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("trip listener: listen: %w", err)
	}
	l.log.Info().Str("channel", l.channel).Msg("listening for trip changes")

	if resync {
		sink(model.TripChange{Op: model.ChangeUpdate})
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("trip listener: wait: %w", err)
		}

		var change model.TripChange
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			l.log.Error().Err(err).Str("payload", n.Payload).Msg("bad trip change payload")
			continue
		}
		sink(change)
	}
}
