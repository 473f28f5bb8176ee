package base

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalendasha/kalendasha/internal/model"
)

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool возвращает пул соединений
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// InTx выполняет fn в одной транзакции. При ошибке транзакция откатывается.
func (r *Repository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Translate(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return Translate(err)
	}
	return nil
}

// Translate переводит ошибки pgx в ошибки ядра:
// нет строки -> ErrNotFound, нарушение уникальности -> ErrConflict,
// обрыв соединения -> ErrStoreUnavailable.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return model.ErrConflict
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection_exception
			return model.ErrStoreUnavailable
		}
	}
	if pgconn.SafeToRetry(err) {
		return model.ErrStoreUnavailable
	}
	return err
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, model.ErrNotFound)
}
