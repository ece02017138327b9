package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/breez/lnunify/establish"
	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
)

// JournalStore persists establishment transitions.
type JournalStore struct {
	pool *pgxpool.Pool
}

func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

func (s *JournalStore) RecordTransition(ctx context.Context, t *establish.Transition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO public.establish_transitions
		 (sender, receiver, from_state, to_state, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.Sender,
		t.Receiver,
		int16(t.From),
		int16(t.To),
		t.Detail,
		t.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	return nil
}

// ListTransitions returns the most recent transitions, newest first. Empty
// sender or receiver match any node.
func (s *JournalStore) ListTransitions(
	ctx context.Context,
	sender string,
	receiver string,
	limit int,
) ([]*establish.Transition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender, receiver, from_state, to_state, detail, created_at
		 FROM public.establish_transitions
		 WHERE ($1 = '' OR sender = $1) AND ($2 = '' OR receiver = $2)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		sender,
		receiver,
		limit,
	)
	if err != nil {
		log.Printf("ListTransitions(%s, %s) error: %v", sender, receiver, err)
		return nil, err
	}
	defer rows.Close()

	var result []*establish.Transition
	for rows.Next() {
		var t establish.Transition
		var from, to int16
		var createdAt int64
		err = rows.Scan(&t.Sender, &t.Receiver, &from, &to, &t.Detail, &createdAt)
		if err != nil {
			return nil, err
		}

		t.From = establish.State(from)
		t.To = establish.State(to)
		t.Time = time.Unix(0, createdAt)
		result = append(result, &t)
	}

	return result, rows.Err()
}
