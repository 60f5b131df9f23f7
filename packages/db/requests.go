package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/google/uuid"
)

const requestColumns = `id, owner, collection_id, name, description, method, url, headers, body, body_type, response, version, created_at, updated_at`

// CreateRequest stores r as a new request at version 1. The target
// collection must exist and belong to r.Owner.
func (s *Session) CreateRequest(ctx context.Context, r *model.PersistedRequest) (*model.PersistedRequest, error) {
	var created *model.PersistedRequest
	err := s.Tx(ctx, func(tx *Session) error {
		if _, err := tx.GetCollection(ctx, r.Owner, r.CollectionID); err != nil {
			return err
		}

		now := tx.timestamp()
		out := *r
		out.Definition = r.Definition.Clone()
		out.ID = uuid.NewString()
		out.Version = 1
		out.CreatedAt = now
		out.UpdatedAt = now

		headers, response, err := encodeRequest(&out)
		if err != nil {
			return err
		}

		qctx, cancel := tx.bound(ctx)
		defer cancel()
		_, err = tx.q.ExecContext(qctx,
			`INSERT INTO requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			out.ID, out.Owner, out.CollectionID, out.Name, nullString(out.Description), string(out.Method), out.URL,
			headers, nullString(out.Body), string(out.BodyType), response, out.Version,
			formatTime(out.CreatedAt), formatTime(out.UpdatedAt))
		if err != nil {
			return storageErr(err, "insert request")
		}
		created = &out
		return nil
	})
	return created, err
}

func (s *Session) GetRequest(ctx context.Context, owner, id string) (*model.PersistedRequest, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if isNoRows(err) {
		return nil, notFound("request", id)
	}
	if err != nil {
		return nil, storageErr(err, "get request")
	}
	if err := authorize("request", id, owner, r.Owner); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRequests returns owner's requests, optionally limited to one collection.
func (s *Session) ListRequests(ctx context.Context, owner, collectionID string) ([]*model.PersistedRequest, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `SELECT ` + requestColumns + ` FROM requests WHERE owner = ?`
	args := []any{owner}
	if collectionID != "" {
		query += ` AND collection_id = ?`
		args = append(args, collectionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "list requests")
	}
	defer rows.Close()

	requests := make([]*model.PersistedRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, storageErr(err, "scan request")
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list requests")
	}
	return requests, nil
}

// UpdateRequest replaces the definition and collection of a stored request.
// A positive expectedVersion must match the stored version, otherwise the
// update fails with a ConflictError.
func (s *Session) UpdateRequest(ctx context.Context, r *model.PersistedRequest, expectedVersion int64) (*model.PersistedRequest, error) {
	var updated *model.PersistedRequest
	err := s.Tx(ctx, func(tx *Session) error {
		current, err := tx.GetRequest(ctx, r.Owner, r.ID)
		if err != nil {
			return err
		}
		if expectedVersion > 0 && current.Version != expectedVersion {
			return errdef.New(errdef.KindConflict, "request %s is at version %d, not %d", r.ID, current.Version, expectedVersion)
		}
		if r.CollectionID != current.CollectionID {
			if _, err := tx.GetCollection(ctx, r.Owner, r.CollectionID); err != nil {
				return err
			}
		}

		out := *current
		out.CollectionID = r.CollectionID
		out.Definition = r.Definition.Clone()
		out.Version = current.Version + 1
		out.UpdatedAt = tx.timestamp()

		headers, _, err := encodeRequest(&out)
		if err != nil {
			return err
		}

		qctx, cancel := tx.bound(ctx)
		defer cancel()
		_, err = tx.q.ExecContext(qctx,
			`UPDATE requests SET collection_id = ?, name = ?, description = ?, method = ?, url = ?, headers = ?,
				body = ?, body_type = ?, version = ?, updated_at = ? WHERE id = ?`,
			out.CollectionID, out.Name, nullString(out.Description), string(out.Method), out.URL, headers,
			nullString(out.Body), string(out.BodyType), out.Version, formatTime(out.UpdatedAt), out.ID)
		if err != nil {
			return storageErr(err, "update request")
		}
		updated = &out
		return nil
	})
	return updated, err
}

// SaveResult overwrites the stored response of a request. Concurrent saves
// are last-write-wins; each one bumps the version.
func (s *Session) SaveResult(ctx context.Context, owner, id string, result *model.ExecutionResult) (*model.PersistedRequest, error) {
	if result == nil {
		return nil, errdef.New(errdef.KindInternal, "save result: result is required")
	}
	var saved *model.PersistedRequest
	err := s.Tx(ctx, func(tx *Session) error {
		current, err := tx.GetRequest(ctx, owner, id)
		if err != nil {
			return err
		}
		response, err := json.Marshal(result)
		if err != nil {
			return errdef.Wrap(errdef.KindInternal, err, "encode response")
		}

		now := tx.timestamp()
		qctx, cancel := tx.bound(ctx)
		defer cancel()
		_, err = tx.q.ExecContext(qctx,
			`UPDATE requests SET response = ?, version = version + 1, updated_at = ? WHERE id = ?`,
			string(response), formatTime(now), id)
		if err != nil {
			return storageErr(err, "save result")
		}

		current.Response = result
		current.Version++
		current.UpdatedAt = now
		saved = current
		return nil
	})
	return saved, err
}

func (s *Session) DeleteRequest(ctx context.Context, owner, id string) error {
	return s.Tx(ctx, func(tx *Session) error {
		if _, err := tx.GetRequest(ctx, owner, id); err != nil {
			return err
		}
		qctx, cancel := tx.bound(ctx)
		defer cancel()
		if _, err := tx.q.ExecContext(qctx, `DELETE FROM attempts WHERE request_id = ?`, id); err != nil {
			return storageErr(err, "delete request attempts")
		}
		if _, err := tx.q.ExecContext(qctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
			return storageErr(err, "delete request")
		}
		return nil
	})
}

func encodeRequest(r *model.PersistedRequest) (headers string, response sql.NullString, err error) {
	// nil encodes as null and empty as [], so both read back unchanged
	hb, err := json.Marshal(r.Headers)
	if err != nil {
		return "", sql.NullString{}, errdef.Wrap(errdef.KindInternal, err, "encode headers")
	}
	if r.Response != nil {
		rb, err := json.Marshal(r.Response)
		if err != nil {
			return "", sql.NullString{}, errdef.Wrap(errdef.KindInternal, err, "encode response")
		}
		response = sql.NullString{String: string(rb), Valid: true}
	}
	return string(hb), response, nil
}

func scanRequest(row scanner) (*model.PersistedRequest, error) {
	var (
		r                    model.PersistedRequest
		description, body    sql.NullString
		response             sql.NullString
		method, bodyType     string
		headers              string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.Owner, &r.CollectionID, &r.Name, &description, &method, &r.URL, &headers,
		&body, &bodyType, &response, &r.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Description = stringPtr(description)
	r.Body = stringPtr(body)
	r.Method = model.Method(method)
	r.BodyType = model.BodyType(bodyType)

	if err := json.Unmarshal([]byte(headers), &r.Headers); err != nil {
		return nil, errdef.Wrap(errdef.KindStorage, err, "decode headers")
	}
	if response.Valid {
		r.Response = &model.ExecutionResult{}
		if err := json.Unmarshal([]byte(response.String), r.Response); err != nil {
			return nil, errdef.Wrap(errdef.KindStorage, err, "decode response")
		}
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
