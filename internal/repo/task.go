package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/BuzzLyutic/todo-api/internal/identity"
	"github.com/BuzzLyutic/todo-api/internal/model"
)

var ErrScopeMismatch = errors.New("token subject does not match task owner")

const taskColumns = `id, text, completed, is_deleted, owner_id::text, created_at, updated_at, deleted_at`

type TaskRepo struct { // Репозиторий для работы непосредственно с БД
	pool *pgxpool.Pool
	role string
}

// NewTaskRepo: role задает роль Postgres, под которой выполняется каждый запрос, чтобы действовали политики RLS.
// Пустая роль оставляет роль соединения.
func NewTaskRepo(pool *pgxpool.Pool, role string) *TaskRepo {
	return &TaskRepo{
		pool: pool,
		role: role,
	}
}

func (r *TaskRepo) Create(ctx context.Context, scope model.Scope, t model.Task) (model.Task, error) {
	var created model.Task
	err := r.scoped(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO todos (text, completed, is_deleted, owner_id, created_at)
			VALUES ($1, $2, false, $3, $4)
			RETURNING `+taskColumns,
			t.Text, t.Completed, scope.OwnerID, t.CreatedAt)
		var err error
		created, err = scanTask(row)
		return err
	})
	return created, r.mapError(err, "create task")
}

func (r *TaskRepo) FindAll(ctx context.Context, scope model.Scope) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	err := r.scoped(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+taskColumns+`
			FROM todos
			WHERE owner_id = $1 AND is_deleted = false
			ORDER BY created_at ASC, id ASC
		`, scope.OwnerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.mapError(err, "list tasks")
	}
	return tasks, nil
}

func (r *TaskRepo) FindByID(ctx context.Context, scope model.Scope, id int64) (*model.Task, error) {
	var found *model.Task
	err := r.scoped(ctx, scope, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+taskColumns+`
			FROM todos
			WHERE id = $1 AND owner_id = $2 AND is_deleted = false
		`, id, scope.OwnerID)
		t, err := scanTask(row)
		if err == pgx.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = &t
		return nil
	})
	return found, r.mapError(err, "find task")
}

func (r *TaskRepo) Update(ctx context.Context, scope model.Scope, id int64, patch model.TaskPatch, updatedAt time.Time) (*model.Task, error) {
	var updated *model.Task
	err := r.scoped(ctx, scope, func(tx pgx.Tx) error {
		// Обновляем только переданные поля: NULL означает «не менять»
		row := tx.QueryRow(ctx, `
			UPDATE todos
			SET text = COALESCE($3::text, text),
			    completed = COALESCE($4::boolean, completed),
			    updated_at = $5
			WHERE id = $1 AND owner_id = $2 AND is_deleted = false
			RETURNING `+taskColumns,
			id, scope.OwnerID, patch.Text, patch.Completed, updatedAt)
		t, err := scanTask(row)
		if err == pgx.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		updated = &t
		return nil
	})
	return updated, r.mapError(err, "update task")
}

func (r *TaskRepo) SoftDelete(ctx context.Context, scope model.Scope, id int64, at time.Time) (bool, error) {
	var affected int64
	err := r.scoped(ctx, scope, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			UPDATE todos
			SET is_deleted = true, deleted_at = $3, updated_at = $3
			WHERE id = $1 AND owner_id = $2 AND is_deleted = false
		`, id, scope.OwnerID, at)
		if err != nil {
			return err
		}
		affected = cmd.RowsAffected()
		return nil
	})
	return affected > 0, r.mapError(err, "delete task")
}

func (r *TaskRepo) CountActive(ctx context.Context, scope model.Scope) (int, error) {
	var n int
	err := r.scoped(ctx, scope, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM todos WHERE owner_id = $1 AND is_deleted = false
		`, scope.OwnerID).Scan(&n)
	})
	return n, r.mapError(err, "count tasks")
}

// scoped выполняет fn в транзакции от имени владельца: claims из токена попадают в
// request.jwt.claims, а роль переключается на r.role, поэтому политики RLS таблицы todos
// работают как вторая линия защиты поверх явного фильтра owner_id.
func (r *TaskRepo) scoped(ctx context.Context, scope model.Scope, fn func(pgx.Tx) error) error {
	claims, err := scopeClaims(scope)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, claims); err != nil {
		return err
	}
	if r.role != "" {
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{r.role}.Sanitize()); err != nil {
			return err
		}
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scopeClaims(scope model.Scope) (string, error) {
	claims := map[string]any{"sub": scope.OwnerID, "role": "authenticated"}
	if scope.Token != "" {
		c, err := identity.ParseUnverified(scope.Token)
		if err != nil {
			return "", err
		}
		if c.Subject != scope.OwnerID {
			return "", ErrScopeMismatch
		}
		if c.Email != "" {
			claims["email"] = c.Email
		}
		if c.Role != "" {
			claims["role"] = c.Role
		}
	}
	b, err := json.Marshal(claims)
	return string(b), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Text, &t.Completed, &t.IsDeleted, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return t, err
}

func (r *TaskRepo) mapError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errors.Wrapf(err, "%s: postgres %s", op, pgErr.Code)
	}
	return errors.Wrap(err, op)
}
