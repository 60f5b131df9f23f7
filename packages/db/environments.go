package db

import (
	"context"
	"encoding/json"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/google/uuid"
)

const environmentColumns = `id, owner, name, variables, created_at`

func (s *Session) CreateEnvironment(ctx context.Context, env *model.EnvironmentSet) (*model.EnvironmentSet, error) {
	if env.Owner == "" {
		return nil, errdef.New(errdef.KindValidation, "environment owner is required")
	}
	if env.Name == "" {
		return nil, errdef.New(errdef.KindValidation, "environment name is required")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	out := &model.EnvironmentSet{
		ID:        uuid.NewString(),
		Owner:     env.Owner,
		Name:      env.Name,
		Variables: copyVariables(env.Variables),
		CreatedAt: s.timestamp(),
	}
	variables, err := encodeVariables(out.Variables)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO environments (`+environmentColumns+`) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.Owner, out.Name, variables, formatTime(out.CreatedAt))
	if err != nil {
		return nil, storageErr(err, "insert environment")
	}
	return out, nil
}

func (s *Session) GetEnvironment(ctx context.Context, owner, id string) (*model.EnvironmentSet, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx, `SELECT `+environmentColumns+` FROM environments WHERE id = ?`, id)
	env, err := scanEnvironment(row)
	if isNoRows(err) {
		return nil, notFound("environment", id)
	}
	if err != nil {
		return nil, storageErr(err, "get environment")
	}
	if err := authorize("environment", id, owner, env.Owner); err != nil {
		return nil, err
	}
	return env, nil
}

// FindEnvironment returns owner's most recent environment called name.
func (s *Session) FindEnvironment(ctx context.Context, owner, name string) (*model.EnvironmentSet, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx,
		`SELECT `+environmentColumns+` FROM environments WHERE owner = ? AND name = ? ORDER BY created_at DESC LIMIT 1`,
		owner, name)
	env, err := scanEnvironment(row)
	if isNoRows(err) {
		return nil, notFound("environment", name)
	}
	if err != nil {
		return nil, storageErr(err, "find environment")
	}
	return env, nil
}

func (s *Session) ListEnvironments(ctx context.Context, owner string) ([]*model.EnvironmentSet, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+environmentColumns+` FROM environments WHERE owner = ? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, storageErr(err, "list environments")
	}
	defer rows.Close()

	envs := make([]*model.EnvironmentSet, 0)
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, storageErr(err, "scan environment")
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list environments")
	}
	return envs, nil
}

// UpdateEnvironment replaces the name and variables of env. An empty name
// keeps the stored one; nil variables keep the stored list.
func (s *Session) UpdateEnvironment(ctx context.Context, env *model.EnvironmentSet) (*model.EnvironmentSet, error) {
	var updated *model.EnvironmentSet
	err := s.Tx(ctx, func(tx *Session) error {
		current, err := tx.GetEnvironment(ctx, env.Owner, env.ID)
		if err != nil {
			return err
		}
		if env.Name != "" {
			current.Name = env.Name
		}
		if env.Variables != nil {
			current.Variables = copyVariables(env.Variables)
		}
		variables, err := encodeVariables(current.Variables)
		if err != nil {
			return err
		}

		qctx, cancel := tx.bound(ctx)
		defer cancel()
		if _, err := tx.q.ExecContext(qctx,
			`UPDATE environments SET name = ?, variables = ? WHERE id = ?`,
			current.Name, variables, current.ID); err != nil {
			return storageErr(err, "update environment")
		}
		updated = current
		return nil
	})
	return updated, err
}

func (s *Session) DeleteEnvironment(ctx context.Context, owner, id string) error {
	return s.Tx(ctx, func(tx *Session) error {
		if _, err := tx.GetEnvironment(ctx, owner, id); err != nil {
			return err
		}
		qctx, cancel := tx.bound(ctx)
		defer cancel()
		if _, err := tx.q.ExecContext(qctx, `DELETE FROM environments WHERE id = ?`, id); err != nil {
			return storageErr(err, "delete environment")
		}
		return nil
	})
}

func copyVariables(vars []model.Variable) []model.Variable {
	out := make([]model.Variable, len(vars))
	copy(out, vars)
	return out
}

func encodeVariables(vars []model.Variable) (string, error) {
	if vars == nil {
		vars = []model.Variable{}
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return "", errdef.Wrap(errdef.KindInternal, err, "encode variables")
	}
	return string(b), nil
}

func scanEnvironment(row scanner) (*model.EnvironmentSet, error) {
	var (
		env       model.EnvironmentSet
		variables string
		createdAt string
	)
	if err := row.Scan(&env.ID, &env.Owner, &env.Name, &variables, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(variables), &env.Variables); err != nil {
		return nil, errdef.Wrap(errdef.KindStorage, err, "decode variables")
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	env.CreatedAt = t
	return &env, nil
}
