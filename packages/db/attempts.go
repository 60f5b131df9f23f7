package db

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/google/uuid"
)

const attemptColumns = `id, request_id, owner, state, kind, error, status, duration_ns, started_at, finished_at`

// AppendAttempt logs one finished execution attempt.
func (s *Session) AppendAttempt(ctx context.Context, a model.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO attempts (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RequestID, a.Owner, string(a.State), a.Kind, a.Error, a.Status, int64(a.Duration),
		formatTime(a.StartedAt), formatTime(a.FinishedAt))
	return storageErr(err, "insert attempt")
}

// ListAttempts returns the attempts of a request owned by owner, newest
// first. A limit of zero or less returns all of them.
func (s *Session) ListAttempts(ctx context.Context, owner, requestID string, limit int) ([]model.Attempt, error) {
	if _, err := s.GetRequest(ctx, owner, requestID); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE request_id = ? ORDER BY started_at DESC, id`
	args := []any{requestID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "list attempts")
	}
	defer rows.Close()

	attempts := make([]model.Attempt, 0)
	for rows.Next() {
		var (
			a                     model.Attempt
			state                 string
			durationNs            int64
			startedAt, finishedAt string
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Owner, &state, &a.Kind, &a.Error, &a.Status, &durationNs,
			&startedAt, &finishedAt); err != nil {
			return nil, storageErr(err, "scan attempt")
		}
		a.State = model.AttemptState(state)
		a.Duration = time.Duration(durationNs)
		if a.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if a.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list attempts")
	}
	return attempts, nil
}
