package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"question-engine/internal/domain"
)

// Recorder persists confirmed submissions and computes the final tally. It is
// the production engine.Submitter: one row per acknowledged answer, keyed by
// (activity, user, question) so a retry after a lost ack upserts instead of
// duplicating.
type Recorder struct {
	pool   *pgxpool.Pool
	userID string
}

func NewRecorder(pool *pgxpool.Pool, userID string) *Recorder {
	return &Recorder{pool: pool, userID: userID}
}

func (r *Recorder) SubmitAnswer(ctx context.Context, activityID string, number int, answer domain.Answer, meta domain.SubmitMeta) error {
	payload, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO submissions (activity_id, user_id, question_number, payload, last_question, time_expired)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (activity_id, user_id, question_number)
		DO UPDATE SET payload=EXCLUDED.payload, last_question=EXCLUDED.last_question,
		              time_expired=EXCLUDED.time_expired, created_at=now()`,
		activityID, r.userID, number, string(payload), meta.LastQuestion, meta.TimeExpired)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

func (r *Recorder) FinishActivity(ctx context.Context, activityID string) (domain.Tally, error) {
	var submitted int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM submissions WHERE activity_id=$1 AND user_id=$2`,
		activityID, r.userID).Scan(&submitted)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("count submissions: %w", err)
	}

	var total int
	err = r.pool.QueryRow(ctx,
		`SELECT jsonb_array_length(data->'questions') FROM question_sets WHERE id=$1`,
		activityID).Scan(&total)
	if err != nil {
		return domain.Tally{}, fmt.Errorf("count questions: %w", err)
	}

	return domain.Tally{ActivityID: activityID, Submitted: submitted, Total: total}, nil
}
