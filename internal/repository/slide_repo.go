package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"aula-backend/internal/models"
)

type SlideRepo struct {
	pool *pgxpool.Pool
}

func NewSlideRepo(pool *pgxpool.Pool) *SlideRepo {
	return &SlideRepo{pool: pool}
}

func (r *SlideRepo) CreateDeck(ctx context.Context, d *models.SlideDeck) error {
	d.ID = uuid.New()
	d.ConversionStatus = models.ConversionPending
	return r.pool.QueryRow(ctx, `
		INSERT INTO slide_decks (id, session_id, file_name, conversion_status, flag_threshold_count, flag_threshold_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, d.ID, d.SessionID, d.FileName, d.ConversionStatus, d.FlagThresholdCount, d.FlagThresholdRate,
	).Scan(&d.CreatedAt)
}

const deckColumns = `id, session_id, file_name, conversion_status, conversion_error, slide_count,
	current_slide_index, flag_threshold_count, flag_threshold_rate, estimated_duration_minutes,
	suggestions_json, created_at`

func scanDeck(row interface{ Scan(dest ...any) error }) (*models.SlideDeck, error) {
	d := &models.SlideDeck{}
	err := row.Scan(
		&d.ID, &d.SessionID, &d.FileName, &d.ConversionStatus, &d.ConversionError,
		&d.SlideCount, &d.CurrentSlideIndex, &d.FlagThresholdCount, &d.FlagThresholdRate,
		&d.EstimatedDurationMinutes, &d.SuggestionsJSON, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *SlideRepo) GetDeck(ctx context.Context, id uuid.UUID) (*models.SlideDeck, error) {
	return scanDeck(r.pool.QueryRow(ctx,
		"SELECT "+deckColumns+" FROM slide_decks WHERE id = $1", id))
}

// GetLatestDeckForSession returns the newest deck uploaded to a session.
func (r *SlideRepo) GetLatestDeckForSession(ctx context.Context, sessionID uuid.UUID) (*models.SlideDeck, error) {
	return scanDeck(r.pool.QueryRow(ctx,
		"SELECT "+deckColumns+" FROM slide_decks WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1",
		sessionID))
}

func (r *SlideRepo) ListDecksBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.SlideDeck, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+deckColumns+" FROM slide_decks WHERE session_id = $1 ORDER BY created_at DESC",
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decks := make([]*models.SlideDeck, 0)
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// DeleteDeck removes the deck row; reactions and bookmarks cascade.
func (r *SlideRepo) DeleteDeck(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM slide_decks WHERE id = $1", id)
	return err
}

func (r *SlideRepo) SetConversionStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE slide_decks SET conversion_status = $1 WHERE id = $2", status, id)
	return err
}

// MarkReady records the final slide count and flips the deck to ready in a
// single statement, so readers never see ready with a zero count.
func (r *SlideRepo) MarkReady(ctx context.Context, id uuid.UUID, slideCount, estimatedMinutes int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE slide_decks SET conversion_status = $1, conversion_error = NULL,
			slide_count = $2, estimated_duration_minutes = $3
		WHERE id = $4
	`, models.ConversionReady, slideCount, estimatedMinutes, id)
	return err
}

func (r *SlideRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE slide_decks SET conversion_status = $1, conversion_error = $2, slide_count = 0
		WHERE id = $3
	`, models.ConversionFailed, reason, id)
	return err
}

func (r *SlideRepo) SetCurrentSlide(ctx context.Context, id uuid.UUID, index int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE slide_decks SET current_slide_index = $1 WHERE id = $2", index, id)
	return err
}

func (r *SlideRepo) SetSuggestions(ctx context.Context, id uuid.UUID, suggestions []byte) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE slide_decks SET suggestions_json = $1 WHERE id = $2", suggestions, id)
	return err
}

// SetReaction upserts a user's reaction on a slide; "none" removes it.
func (r *SlideRepo) SetReaction(ctx context.Context, deckID, userID uuid.UUID, slideIndex int, reaction string) error {
	if reaction == models.ReactionNone {
		_, err := r.pool.Exec(ctx,
			"DELETE FROM slide_reactions WHERE deck_id = $1 AND user_id = $2 AND slide_index = $3",
			deckID, userID, slideIndex)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slide_reactions (deck_id, user_id, slide_index, reaction)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (deck_id, user_id, slide_index) DO UPDATE
		SET reaction = EXCLUDED.reaction, updated_at = NOW()
	`, deckID, userID, slideIndex, reaction)
	return err
}

func (r *SlideRepo) TallyReactions(ctx context.Context, deckID uuid.UUID, slideIndex int) (models.ReactionTally, error) {
	t := models.ReactionTally{SlideIndex: slideIndex}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE reaction = 'understood'),
		       COUNT(*) FILTER (WHERE reaction = 'question'),
		       COUNT(*) FILTER (WHERE reaction = 'hard')
		FROM slide_reactions WHERE deck_id = $1 AND slide_index = $2
	`, deckID, slideIndex).Scan(&t.Understood, &t.Question, &t.Hard)
	return t, err
}

func (r *SlideRepo) TallyAllReactions(ctx context.Context, deckID uuid.UUID) ([]models.ReactionTally, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slide_index,
		       COUNT(*) FILTER (WHERE reaction = 'understood'),
		       COUNT(*) FILTER (WHERE reaction = 'question'),
		       COUNT(*) FILTER (WHERE reaction = 'hard')
		FROM slide_reactions WHERE deck_id = $1
		GROUP BY slide_index ORDER BY slide_index
	`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tallies := make([]models.ReactionTally, 0)
	for rows.Next() {
		var t models.ReactionTally
		if err := rows.Scan(&t.SlideIndex, &t.Understood, &t.Question, &t.Hard); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

func (r *SlideRepo) GetBookmark(ctx context.Context, deckID uuid.UUID, slideIndex int) (*models.SlideBookmark, error) {
	b := &models.SlideBookmark{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, deck_id, slide_index, is_auto, is_manual, reason, memo, supplement_url, updated_at
		FROM slide_bookmarks WHERE deck_id = $1 AND slide_index = $2
	`, deckID, slideIndex).Scan(&b.ID, &b.DeckID, &b.SlideIndex, &b.IsAuto, &b.IsManual,
		&b.Reason, &b.Memo, &b.SupplementURL, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *SlideRepo) ListBookmarks(ctx context.Context, deckID uuid.UUID) ([]*models.SlideBookmark, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deck_id, slide_index, is_auto, is_manual, reason, memo, supplement_url, updated_at
		FROM slide_bookmarks WHERE deck_id = $1 ORDER BY slide_index
	`, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := make([]*models.SlideBookmark, 0)
	for rows.Next() {
		b := &models.SlideBookmark{}
		if err := rows.Scan(&b.ID, &b.DeckID, &b.SlideIndex, &b.IsAuto, &b.IsManual,
			&b.Reason, &b.Memo, &b.SupplementURL, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// SetAutoFlag raises or lowers the auto flag on a slide. Rows that are
// neither auto nor manual after the change are removed.
func (r *SlideRepo) SetAutoFlag(ctx context.Context, deckID uuid.UUID, slideIndex int, flagged bool, reason string) error {
	if flagged {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO slide_bookmarks (deck_id, slide_index, is_auto, reason)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (deck_id, slide_index) DO UPDATE
			SET is_auto = TRUE, reason = EXCLUDED.reason, updated_at = NOW()
		`, deckID, slideIndex, reason)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE slide_bookmarks SET is_auto = FALSE, reason = NULL, updated_at = NOW()
		WHERE deck_id = $1 AND slide_index = $2
	`, deckID, slideIndex)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		"DELETE FROM slide_bookmarks WHERE deck_id = $1 AND slide_index = $2 AND NOT is_auto AND NOT is_manual",
		deckID, slideIndex)
	return err
}

func (r *SlideRepo) SetManualBookmark(ctx context.Context, deckID uuid.UUID, slideIndex int, on bool, memo, supplementURL string) error {
	if on {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO slide_bookmarks (deck_id, slide_index, is_manual, memo, supplement_url)
			VALUES ($1, $2, TRUE, $3, $4)
			ON CONFLICT (deck_id, slide_index) DO UPDATE
			SET is_manual = TRUE, memo = EXCLUDED.memo, supplement_url = EXCLUDED.supplement_url, updated_at = NOW()
		`, deckID, slideIndex, memo, supplementURL)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE slide_bookmarks SET is_manual = FALSE, memo = '', supplement_url = '', updated_at = NOW()
		WHERE deck_id = $1 AND slide_index = $2
	`, deckID, slideIndex)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		"DELETE FROM slide_bookmarks WHERE deck_id = $1 AND slide_index = $2 AND NOT is_auto AND NOT is_manual",
		deckID, slideIndex)
	return err
}
