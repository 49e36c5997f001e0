// Package audit records authentication and administrative actions in an
// append-only Postgres log. Writes are buffered and flushed by a background
// worker so auditing never sits on the request path.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

const (
	bufferSize   = 256
	writeTimeout = 5 * time.Second
)

// Logger is a buffered audit writer backed by the shared Postgres pool.
type Logger struct {
	pool    *pgxpool.Pool
	events  chan models.AuditEvent
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
}

// NewLogger starts the background writer.
func NewLogger(pool *pgxpool.Pool) *Logger {
	l := &Logger{
		pool:   pool,
		events: make(chan models.AuditEvent, bufferSize),
		stop:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Record queues an audit event. A full buffer drops the event with a log
// line rather than blocking the caller.
func (l *Logger) Record(userID *uuid.UUID, action, details string) {
	ev := models.AuditEvent{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	select {
	case l.events <- ev:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
		log.Warn().Str("action", action).Msg("Audit buffer full, event dropped")
	}
}

// List returns the most recent audit events, newest first.
func (l *Logger) List(ctx context.Context, limit, offset int) ([]*models.AuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, user_id, action, details, created_at FROM audit_log
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []*models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Action, &ev.Details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Close drains the buffer and stops the writer.
func (l *Logger) Close() {
	close(l.stop)
	l.wg.Wait()
}

func (l *Logger) run() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.events:
			l.write(ev)
		case <-l.stop:
			// Drain whatever is still queued.
			for {
				select {
				case ev := <-l.events:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(ev models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4)`,
		ev.UserID, ev.Action, ev.Details, ev.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("action", ev.Action).Msg("Failed to write audit event")
	}
}
