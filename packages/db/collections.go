package db

import (
	"context"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/google/uuid"
)

// CollectionPatch holds the fields of a partial collection update. Nil
// fields keep their stored value.
type CollectionPatch struct {
	Name        *string
	Description *string
}

const collectionColumns = `id, owner, name, description, created_at`

func (s *Session) CreateCollection(ctx context.Context, c *model.Collection) (*model.Collection, error) {
	if c.Owner == "" {
		return nil, errdef.New(errdef.KindValidation, "collection owner is required")
	}
	if c.Name == "" {
		return nil, errdef.New(errdef.KindValidation, "collection name is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	out := &model.Collection{
		ID:          uuid.NewString(),
		Owner:       c.Owner,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   s.timestamp(),
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO collections (`+collectionColumns+`) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.Owner, out.Name, out.Description, formatTime(out.CreatedAt))
	if err != nil {
		return nil, storageErr(err, "insert collection")
	}
	return out, nil
}

// GetCollection loads a collection owned by owner, without its requests.
func (s *Session) GetCollection(ctx context.Context, owner, id string) (*model.Collection, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if isNoRows(err) {
		return nil, notFound("collection", id)
	}
	if err != nil {
		return nil, storageErr(err, "get collection")
	}
	if err := authorize("collection", id, owner, c.Owner); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Session) ListCollections(ctx context.Context, owner string) ([]*model.Collection, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE owner = ? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, storageErr(err, "list collections")
	}
	defer rows.Close()

	collections := make([]*model.Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, storageErr(err, "scan collection")
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list collections")
	}
	return collections, nil
}

func (s *Session) UpdateCollection(ctx context.Context, owner, id string, patch CollectionPatch) (*model.Collection, error) {
	var updated *model.Collection
	err := s.Tx(ctx, func(tx *Session) error {
		c, err := tx.GetCollection(ctx, owner, id)
		if err != nil {
			return err
		}
		if patch.Name != nil && *patch.Name != "" {
			c.Name = *patch.Name
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}

		qctx, cancel := tx.bound(ctx)
		defer cancel()
		if _, err := tx.q.ExecContext(qctx,
			`UPDATE collections SET name = ?, description = ? WHERE id = ?`,
			c.Name, c.Description, c.ID); err != nil {
			return storageErr(err, "update collection")
		}
		updated = c
		return nil
	})
	return updated, err
}

// DeleteCollection removes a collection with its requests and their
// attempts. Nothing is deleted when owner does not own the collection.
func (s *Session) DeleteCollection(ctx context.Context, owner, id string) error {
	return s.Tx(ctx, func(tx *Session) error {
		if _, err := tx.GetCollection(ctx, owner, id); err != nil {
			return err
		}

		qctx, cancel := tx.bound(ctx)
		defer cancel()
		statements := []struct {
			query string
			op    string
		}{
			{`DELETE FROM attempts WHERE request_id IN (SELECT id FROM requests WHERE collection_id = ?)`, "delete collection attempts"},
			{`DELETE FROM requests WHERE collection_id = ?`, "delete collection requests"},
			{`DELETE FROM collections WHERE id = ?`, "delete collection"},
		}
		for _, st := range statements {
			if _, err := tx.q.ExecContext(qctx, st.query, id); err != nil {
				return storageErr(err, st.op)
			}
		}
		return nil
	})
}

func scanCollection(row scanner) (*model.Collection, error) {
	var (
		c         model.Collection
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Owner, &c.Name, &c.Description, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}
