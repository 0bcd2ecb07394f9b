// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт: запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — набор всех репозиториев поверх одного DBTX.
// Внутри транзакции все репозитории работают с одним pgx.Tx.
type Store struct {
	References  ReferenceRepository
	Findings    FindingRepository
	Plans       ResearchPlanRepository
	Owners      ResearchOwnerRepository
	Attachments AttachmentRepository
	Sessions    SessionRepository
	Directory   DirectoryRepository
	PSUUsers    PSUUserRepository
	RoleLog     RoleLogRepository
	Master      MasterRepository
	SyncState   SyncStateRepository
}

// NewStore создаёт набор репозиториев поверх db (пул или транзакция).
func NewStore(db DBTX) *Store {
	return &Store{
		References:  NewReferenceRepository(db),
		Findings:    NewFindingRepository(db),
		Plans:       NewResearchPlanRepository(db),
		Owners:      NewResearchOwnerRepository(db),
		Attachments: NewAttachmentRepository(db),
		Sessions:    NewSessionRepository(db),
		Directory:   NewDirectoryRepository(db),
		PSUUsers:    NewPSUUserRepository(db),
		RoleLog:     NewRoleLogRepository(db),
		Master:      NewMasterRepository(db),
		SyncState:   NewSyncStateRepository(db),
	}
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// InTx выполняет fn с набором репозиториев, привязанным к одной транзакции.
func (r *TxRunner) InTx(ctx context.Context, fn func(s *Store) error) error {
	return r.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// columnSet — упорядоченный набор колонок и значений для INSERT/UPDATE.
type columnSet struct {
	names  []string
	values []any
}

// add добавляет колонку со значением.
func (c *columnSet) add(name string, value any) {
	c.names = append(c.names, name)
	c.values = append(c.values, value)
}

// insertSQL строит INSERT ... VALUES ... RETURNING returning.
func (c *columnSet) insertSQL(table, returning string) string {
	cols := make([]string, len(c.names))
	params := make([]string, len(c.names))
	for i, name := range c.names {
		cols[i] = pgx.Identifier{name}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)
	if returning != "" {
		query += " RETURNING " + returning
	}
	return query
}

// updateSQL строит UPDATE ... SET ... WHERE keyColumn = $N.
// Значение ключа передаётся последним аргументом (см. updateArgs).
func (c *columnSet) updateSQL(table, keyColumn string) string {
	sets := make([]string, len(c.names), len(c.names)+1)
	for i, name := range c.names {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{name}.Sanitize(), i+1)
	}
	sets = append(sets, "updated_at = NOW()")
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(sets, ", "),
		pgx.Identifier{keyColumn}.Sanitize(),
		len(c.names)+1,
	)
}

// updateArgs возвращает аргументы для updateSQL.
func (c *columnSet) updateArgs(key any) []any {
	args := make([]any, 0, len(c.values)+1)
	args = append(args, c.values...)
	return append(args, key)
}

// execUpdate выполняет UPDATE и возвращает ErrNotFound, если строка не найдена.
func execUpdate(ctx context.Context, db DBTX, table, keyColumn string, key any, cs *columnSet) error {
	tag, err := db.Exec(ctx, cs.updateSQL(table, keyColumn), cs.updateArgs(key)...)
	if err != nil {
		return fmt.Errorf("ошибка обновления %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
