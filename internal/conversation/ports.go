package conversation

import "context"

// Reader is the read side of conversation memory. All queries are scoped
// to one session and return items ordered oldest-first within their
// configured time windows.
type Reader interface {
	// RecentFinals returns committed transcript lines within the recency
	// window ending at nowMs.
	RecentFinals(ctx context.Context, nowMs float64) ([]*Item, error)

	// RelatedActs returns prior acts related to text (keyword search)
	// within the related-acts window.
	RelatedActs(ctx context.Context, text string, nowMs float64) ([]*Item, error)

	// LatestAnswerForAct returns the most recent answer referencing actID,
	// or nil when the act is still open.
	LatestAnswerForAct(ctx context.Context, actID string) (*Item, error)

	// OpenActs returns acts with no recorded answer within the open-acts
	// window.
	OpenActs(ctx context.Context, nowMs float64) ([]*Item, error)
}

// Writer is the write side used by the pipeline. Each upsert persists a
// single item atomically and returns the stored form.
type Writer interface {
	UpsertFinal(ctx context.Context, speaker, text string, t0, t1 float64) (*Item, error)
	UpsertAct(ctx context.Context, speaker, text, category string, t0, t1 float64) (*Item, error)
	UpsertAnswer(ctx context.Context, speaker, text string, t0, t1 float64, parentActID string) (*Item, error)
}
