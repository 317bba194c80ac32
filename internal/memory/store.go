// Package memory is the durable conversation store: a Postgres-backed,
// session-scoped, time-windowed document store for finals, acts and
// answers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundbench/huddle/internal/conversation"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_items (
	id            text PRIMARY KEY,
	session_id    text NOT NULL,
	kind          text NOT NULL,
	category      text NOT NULL DEFAULT '',
	t0            double precision NOT NULL,
	t1            double precision NOT NULL,
	speaker       text NOT NULL DEFAULT '',
	parent_act_id text NOT NULL DEFAULT '',
	text          text NOT NULL
);
CREATE INDEX IF NOT EXISTS conversation_items_session_kind_t0
	ON conversation_items (session_id, kind, t0);
`

// Options bounds the store's query windows and page sizes.
type Options struct {
	SessionID string

	RecentFinalsWindow time.Duration
	RecentFinalsLimit  int
	RelatedActsWindow  time.Duration
	RelatedActsLimit   int
	OpenActsWindow     time.Duration
	OpenActsLimit      int
}

// DefaultOptions returns the windows used when the config leaves them
// unset.
func DefaultOptions(sessionID string) Options {
	return Options{
		SessionID:          sessionID,
		RecentFinalsWindow: 40 * time.Second,
		RecentFinalsLimit:  4,
		RelatedActsWindow:  20 * time.Minute,
		RelatedActsLimit:   5,
		OpenActsWindow:     20 * time.Minute,
		OpenActsLimit:      50,
	}
}

// Store implements conversation.Reader and conversation.Writer on top of
// Postgres. Schema setup is idempotent and safe under concurrent first
// use.
type Store struct {
	pool *pgxpool.Pool
	opts Options

	schemaOnce sync.Once
	schemaErr  error
}

func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, opts: opts}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// ensureSchema runs the create-if-not-exists setup exactly once per
// process. A concurrent creator winning the race is treated as success.
func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		if _, err := s.pool.Exec(ctx, schema); err != nil {
			s.schemaErr = fmt.Errorf("ensure schema: %w", err)
		}
	})
	return s.schemaErr
}

func newID(sessionID, kind string) string {
	return fmt.Sprintf("%s-%s-%s", sessionID, kind, uuid.New().String())
}

func (s *Store) insert(ctx context.Context, item *conversation.Item) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_items (id, session_id, kind, category, t0, t1, speaker, parent_act_id, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		item.ID, item.SessionID, item.Kind, item.Category,
		item.T0, item.T1, item.Speaker, item.ParentActID, item.Text)
	if err != nil {
		return fmt.Errorf("insert %s item: %w", item.Kind, err)
	}
	return nil
}

// UpsertFinal persists a committed transcript line.
func (s *Store) UpsertFinal(ctx context.Context, speaker, text string, t0, t1 float64) (*conversation.Item, error) {
	item := &conversation.Item{
		ID:        newID(s.opts.SessionID, conversation.KindFinal),
		SessionID: s.opts.SessionID,
		Kind:      conversation.KindFinal,
		Speaker:   speaker,
		Text:      text,
		T0:        t0,
		T1:        t1,
	}
	if err := s.insert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpsertAct persists a detected act together with its category.
func (s *Store) UpsertAct(ctx context.Context, speaker, text, category string, t0, t1 float64) (*conversation.Item, error) {
	item := &conversation.Item{
		ID:        newID(s.opts.SessionID, conversation.KindAct),
		SessionID: s.opts.SessionID,
		Kind:      conversation.KindAct,
		Category:  category,
		Speaker:   speaker,
		Text:      text,
		T0:        t0,
		T1:        t1,
	}
	if err := s.insert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpsertAnswer persists a generated answer referencing its act.
func (s *Store) UpsertAnswer(ctx context.Context, speaker, text string, t0, t1 float64, parentActID string) (*conversation.Item, error) {
	item := &conversation.Item{
		ID:          newID(s.opts.SessionID, conversation.KindAnswer),
		SessionID:   s.opts.SessionID,
		Kind:        conversation.KindAnswer,
		Speaker:     speaker,
		Text:        text,
		ParentActID: parentActID,
		T0:          t0,
		T1:          t1,
	}
	if err := s.insert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

const selectItem = `SELECT id, session_id, kind, category, t0, t1, speaker, parent_act_id, text FROM conversation_items`

func scanItems(rows pgx.Rows) ([]*conversation.Item, error) {
	defer rows.Close()
	var items []*conversation.Item
	for rows.Next() {
		var it conversation.Item
		if err := rows.Scan(&it.ID, &it.SessionID, &it.Kind, &it.Category,
			&it.T0, &it.T1, &it.Speaker, &it.ParentActID, &it.Text); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}
	return items, nil
}

// RecentFinals returns finals within the recency window, oldest first.
func (s *Store) RecentFinals(ctx context.Context, nowMs float64) ([]*conversation.Item, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	cutoff := nowMs - float64(s.opts.RecentFinalsWindow.Milliseconds())
	rows, err := s.pool.Query(ctx, selectItem+`
		WHERE session_id = $1 AND kind = 'final' AND t0 >= $2
		ORDER BY t0 ASC LIMIT $3`,
		s.opts.SessionID, cutoff, s.opts.RecentFinalsLimit)
	if err != nil {
		return nil, fmt.Errorf("query recent finals: %w", err)
	}
	return scanItems(rows)
}

// RelatedActs returns prior acts within the related-acts window ranked
// by keyword overlap with text, oldest first.
func (s *Store) RelatedActs(ctx context.Context, text string, nowMs float64) ([]*conversation.Item, error) {
	if text == "" {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	cutoff := nowMs - float64(s.opts.RelatedActsWindow.Milliseconds())
	rows, err := s.pool.Query(ctx, selectItem+`
		WHERE session_id = $1 AND kind = 'act' AND t0 >= $2
		ORDER BY t0 ASC`,
		s.opts.SessionID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query related acts: %w", err)
	}
	acts, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	return rankRelated(acts, text, s.opts.RelatedActsLimit), nil
}

// LatestAnswerForAct returns the newest answer for actID, or nil when
// the act is still open.
func (s *Store) LatestAnswerForAct(ctx context.Context, actID string) (*conversation.Item, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, selectItem+`
		WHERE session_id = $1 AND kind = 'answer' AND parent_act_id = $2
		ORDER BY t0 DESC LIMIT 1`,
		s.opts.SessionID, actID)
	var it conversation.Item
	err := row.Scan(&it.ID, &it.SessionID, &it.Kind, &it.Category,
		&it.T0, &it.T1, &it.Speaker, &it.ParentActID, &it.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest answer: %w", err)
	}
	return &it, nil
}

// OpenActs returns acts without a recorded answer within the open-acts
// window, oldest first.
func (s *Store) OpenActs(ctx context.Context, nowMs float64) ([]*conversation.Item, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	cutoff := nowMs - float64(s.opts.OpenActsWindow.Milliseconds())
	rows, err := s.pool.Query(ctx, selectItem+`
		WHERE session_id = $1 AND kind = 'act' AND t0 >= $2
		AND NOT EXISTS (
			SELECT 1 FROM conversation_items a
			WHERE a.session_id = $1 AND a.kind = 'answer' AND a.parent_act_id = conversation_items.id
		)
		ORDER BY t0 ASC LIMIT $3`,
		s.opts.SessionID, cutoff, s.opts.OpenActsLimit)
	if err != nil {
		return nil, fmt.Errorf("query open acts: %w", err)
	}
	return scanItems(rows)
}

// SessionItems returns all items for a session, optionally filtered by
// kind, oldest first. Used by the dump surfaces.
func (s *Store) SessionItems(ctx context.Context, sessionID, kind string, limit int) ([]*conversation.Item, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}
	query := selectItem + ` WHERE session_id = $1`
	args := []any{sessionID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY t0 ASC LIMIT %d`, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query session items: %w", err)
	}
	return scanItems(rows)
}

// ClearSession deletes every item for sessionID.
func (s *Store) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversation_items WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear session: %w", err)
	}
	return tag.RowsAffected(), nil
}
