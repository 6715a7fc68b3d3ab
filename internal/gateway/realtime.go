package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/snapfeed/backend/internal/db"
)

// PostgresListener consumes the change feed the document store publishes via
// NOTIFY. Each subscription holds a dedicated connection for the lifetime of
// the listen loop. Events for documents written while no subscriber is
// connected are not replayed.
type PostgresListener struct {
	pool   db.Pool
	logger *slog.Logger
}

// NewPostgresListener constructs a change-feed listener.
func NewPostgresListener(pool db.Pool, logger *slog.Logger) *PostgresListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresListener{pool: pool, logger: logger}
}

// Subscribe attaches fn to the change feed for one collection. fn runs on
// the listener goroutine; events for distinct documents carry no ordering
// guarantee and may be delivered more than once, so consumers deduplicate by
// document id. The returned cancel function blocks until the listener has
// stopped; fn is never invoked after it returns.
func (l *PostgresListener) Subscribe(ctx context.Context, collection string, fn func(Event)) (CancelFunc, error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe %s: nil callback", collection)
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen on %s: %w", NotifyChannel, err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer conn.Release()

		for {
			notification, err := conn.Conn().WaitForNotification(loopCtx)
			if err != nil {
				if loopCtx.Err() != nil {
					return
				}
				l.logger.Error("change-feed listener stopped", "collection", collection, "error", err)
				return
			}

			var payload notifyPayload
			if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
				l.logger.Warn("decode change-feed payload", "error", err)
				continue
			}
			if payload.Collection != collection {
				continue
			}

			fn(Event{
				Kind:       payload.Kind,
				Collection: payload.Collection,
				Document: Document{
					ID:        payload.ID,
					CreatedAt: payload.CreatedAt,
					UpdatedAt: payload.UpdatedAt,
					Data:      payload.Data,
				},
			})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

var _ Subscriber = (*PostgresListener)(nil)
