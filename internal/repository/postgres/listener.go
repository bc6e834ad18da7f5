package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var ErrFeedInterrupted = errors.New("realtime feed interrupted")

// Listener turns Postgres notifications into room snapshots so that
// commits made by other processes reach local subscribers.
type Listener struct {
	databaseURL string
	store       *Store
	maxBackoff  time.Duration
}

func NewListener(databaseURL string, store *Store) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		store:       store,
		maxBackoff:  30 * time.Second,
	}
}

// Run listens until ctx is done, reconnecting with exponential backoff.
// Subscribers are told about every lost connection.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = l.maxBackoff
	b.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Msg("Room listener disconnected")
		l.store.Feed().PublishError("", fmt.Errorf("%w: %v", ErrFeedInterrupted, err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.NextBackOff()):
		}
	}
}

func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := pgx.Connect(ctx, l.databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{RoomChannel}.Sanitize()); err != nil {
		return err
	}
	connected()
	log.Info().Str("channel", RoomChannel).Msg("Room listener connected")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := l.store.Refresh(ctx, n.Payload); err != nil {
			log.Warn().Err(err).Str("room", n.Payload).Msg("Failed to refresh room")
		}
	}
}
