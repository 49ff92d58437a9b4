package inmemdb

import (
	"context"

	"github.com/trezcool/coursegen/core/ledger"
)

type ledgerRepository struct {
	db *ledgerTable
}

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db.ledger}
}

func (repo *ledgerRepository) CreateEntry(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.byKey[entry.IdempotencyKey]; ok {
		return ledger.Entry{}, ledger.ErrDuplicateEntry
	}
	repo.db.entries = append(repo.db.entries, entry)
	repo.db.byKey[entry.IdempotencyKey] = len(repo.db.entries) - 1
	return entry, nil
}

func (repo *ledgerRepository) GetEntryByIdempotencyKey(_ context.Context, key string) (ledger.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if i, ok := repo.db.byKey[key]; ok {
		return repo.db.entries[i], nil
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (repo *ledgerRepository) QueryEntriesByUser(_ context.Context, userID string) ([]ledger.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]ledger.Entry, 0)
	for _, e := range repo.db.entries {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (repo *ledgerRepository) SumAmountByUser(_ context.Context, userID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var sum int
	for _, e := range repo.db.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}
