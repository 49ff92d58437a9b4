package inmemdb

import (
	"sync"

	"github.com/trezcool/coursegen/core/course"
	"github.com/trezcool/coursegen/core/ledger"
)

// DB is an in-memory store used in debug mode and tests.
type DB struct {
	course *courseTable
	ledger *ledgerTable
}

type courseTable struct {
	mutex    sync.RWMutex
	courses  map[string]*course.Course
	rounds   map[string][]course.FeedbackRound   // by course ID
	contents map[string][]course.ChapterContent  // by course ID
}

type ledgerTable struct {
	mutex   sync.RWMutex
	entries []ledger.Entry
	byKey   map[string]int // idempotency key -> index into entries
}

func Open() *DB {
	return &DB{
		course: &courseTable{
			courses:  make(map[string]*course.Course),
			rounds:   make(map[string][]course.FeedbackRound),
			contents: make(map[string][]course.ChapterContent),
		},
		ledger: &ledgerTable{
			byKey: make(map[string]int),
		},
	}
}
