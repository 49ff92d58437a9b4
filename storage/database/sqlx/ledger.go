package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/coursegen/core/ledger"
)

const pqUniqueViolation = "23505"

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sql.DB) ledger.Repository {
	return &ledgerRepository{db: sqlx.NewDb(db, "postgres")}
}

type dbEntry struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	Amount          int       `db:"amount"`
	Reason          string    `db:"reason"`
	IdempotencyKey  string    `db:"idempotency_key"`
	PartnerRef      string    `db:"partner_ref"`
	CourseID        string    `db:"course_id"`
	ChapterPosition int       `db:"chapter_position"`
	Note            string    `db:"note"`
	CreatedAt       time.Time `db:"created_at"`
}

func (e dbEntry) toCore() ledger.Entry {
	return ledger.Entry{
		ID:              e.ID,
		UserID:          e.UserID,
		Amount:          e.Amount,
		Reason:          ledger.Reason(e.Reason),
		IdempotencyKey:  e.IdempotencyKey,
		PartnerRef:      e.PartnerRef,
		CourseID:        e.CourseID,
		ChapterPosition: e.ChapterPosition,
		Note:            e.Note,
		CreatedAt:       e.CreatedAt,
	}
}

func toDBEntry(e ledger.Entry) dbEntry {
	return dbEntry{
		ID:              e.ID,
		UserID:          e.UserID,
		Amount:          e.Amount,
		Reason:          string(e.Reason),
		IdempotencyKey:  e.IdempotencyKey,
		PartnerRef:      e.PartnerRef,
		CourseID:        e.CourseID,
		ChapterPosition: e.ChapterPosition,
		Note:            e.Note,
		CreatedAt:       e.CreatedAt,
	}
}

func (repo *ledgerRepository) CreateEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO ledger_entry (id, user_id, amount, reason, idempotency_key, partner_ref, course_id, chapter_position, note, created_at)
		VALUES (:id, :user_id, :amount, :reason, :idempotency_key, :partner_ref, :course_id, :chapter_position, :note, :created_at)`,
		toDBEntry(entry),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return ledger.Entry{}, ledger.ErrDuplicateEntry
		}
		return ledger.Entry{}, errors.Wrap(err, "inserting ledger entry")
	}
	return entry, nil
}

func (repo *ledgerRepository) GetEntryByIdempotencyKey(ctx context.Context, key string) (ledger.Entry, error) {
	var row dbEntry
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM ledger_entry WHERE idempotency_key = $1`, key)
	if err == sql.ErrNoRows {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	if err != nil {
		return ledger.Entry{}, errors.Wrap(err, "getting ledger entry")
	}
	return row.toCore(), nil
}

func (repo *ledgerRepository) QueryEntriesByUser(ctx context.Context, userID string) ([]ledger.Entry, error) {
	var rows []dbEntry
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM ledger_entry WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying ledger entries")
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toCore())
	}
	return entries, nil
}

func (repo *ledgerRepository) SumAmountByUser(ctx context.Context, userID string) (int, error) {
	var sum int
	err := repo.db.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entry WHERE user_id = $1`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "summing ledger entries")
	}
	return sum, nil
}
