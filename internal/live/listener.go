package live

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Channel is the Postgres NOTIFY channel the schema triggers publish on.
const Channel = "helpdesk_events"

type Listener struct {
	pool *pgxpool.Pool
	hub  *Hub
	log  zerolog.Logger

	minBackoff, maxBackoff time.Duration
}

func NewListener(pool *pgxpool.Pool, hub *Hub, log zerolog.Logger) *Listener {
	return &Listener{pool: pool, hub: hub, log: log, minBackoff: time.Second, maxBackoff: 30 * time.Second}
}

// Run listens until ctx is done, reconnecting with backoff. After every
// reconnect subscribers get a resync since events may have been missed.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		started := time.Now()
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > l.maxBackoff {
			backoff = l.minBackoff
		}
		l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("live listener disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.maxBackoff)
		l.hub.Resync()
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pc, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// The connection stays in LISTEN mode, so it never goes back to the pool.
	conn := pc.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	l.log.Info().Str("channel", Channel).Msg("live listener started")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		e, err := Decode(n.Payload)
		if err != nil {
			l.log.Warn().Err(err).Str("payload", n.Payload).Msg("undecodable live event")
			continue
		}
		l.hub.Publish(e)
	}
}
