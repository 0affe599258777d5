package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/port/store"
)

// Store implements store.Conversations using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Conversations = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) LoadHistory(ctx context.Context, topicID string) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, topic_id, sender_id, role, text, created_at
		 FROM messages WHERE topic_id = $1 ORDER BY created_at ASC, id ASC`,
		topicID)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", topicID, err)
	}
	defer rows.Close()

	var result []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.TopicID, &m.SenderID, &m.Role, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) AppendMessage(ctx context.Context, topicID, senderID string, role chat.Role, text string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (topic_id, sender_id, role, text)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		topicID, senderID, role, text,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	_, _ = s.pool.Exec(ctx, `UPDATE topics SET updated_at = NOW() WHERE id = $1`, topicID)
	return id, nil
}

func (s *Store) SaveAssignment(ctx context.Context, topicID, modelID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO topics (id, model_id)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET model_id = EXCLUDED.model_id, updated_at = NOW()`,
		topicID, modelID)
	if err != nil {
		return fmt.Errorf("save assignment %s: %w", topicID, err)
	}
	return nil
}

func (s *Store) Assignments(ctx context.Context) ([]chat.Topic, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, model_id, registered_at FROM topics ORDER BY registered_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var result []chat.Topic
	for rows.Next() {
		var t chat.Topic
		if err := rows.Scan(&t.ID, &t.ModelID, &t.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) SaveRestartPoint(ctx context.Context, rp chat.RestartPoint) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO restart_points (topic_id, message_index, summary)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (topic_id) DO UPDATE
		 SET message_index = EXCLUDED.message_index,
		     summary = EXCLUDED.summary,
		     created_at = NOW()`,
		rp.TopicID, rp.MessageIndex, rp.Summary)
	if err != nil {
		return fmt.Errorf("save restart point %s: %w", rp.TopicID, err)
	}
	return nil
}

func (s *Store) CurrentRestartPoint(ctx context.Context, topicID string) (*chat.RestartPoint, error) {
	var rp chat.RestartPoint
	err := s.pool.QueryRow(ctx,
		`SELECT topic_id, message_index, summary, created_at
		 FROM restart_points WHERE topic_id = $1`,
		topicID,
	).Scan(&rp.TopicID, &rp.MessageIndex, &rp.Summary, &rp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("restart point %s: %w", topicID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("restart point %s: %w", topicID, err)
	}
	return &rp, nil
}
