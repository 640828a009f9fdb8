package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
)

type (
	// DB keeps every table in memory. It implements core.Transactor: a transaction
	// holds the write lock of the whole DB and restores a snapshot when it fails.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex
		data *tableSet
	}

	topicRow struct {
		content.Topic
		deletedAt time.Time
	}

	lessonRow struct {
		content.Lesson
		deletedAt time.Time
	}

	quizRow struct {
		content.Quiz
		deletedAt time.Time
	}

	studentRow struct {
		student.Student
		deletedAt time.Time
	}

	tableSet struct {
		pk      int64
		admins  map[int64]*admin.Admin
		topics  map[int64]*topicRow
		lessons map[int64]*lessonRow
		quizzes map[int64]*quizRow
		options map[int64][]content.QuizOption // {quizID: options}

		students map[int64]*studentRow
		progress map[int64]*progress.Progress
		attempts []progress.Attempt
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() (*DB, error) {
	return &DB{data: newTableSet()}, nil
}

func newTableSet() *tableSet {
	return &tableSet{
		admins:  make(map[int64]*admin.Admin),
		topics:  make(map[int64]*topicRow),
		lessons: make(map[int64]*lessonRow),
		quizzes: make(map[int64]*quizRow),
		options: make(map[int64][]content.QuizOption),

		students: make(map[int64]*studentRow),
		progress: make(map[int64]*progress.Progress),
	}
}

func (t *tableSet) nextPK() int64 {
	t.pk++
	return t.pk
}

func (t *tableSet) clone() *tableSet {
	c := newTableSet()
	c.pk = t.pk
	for id, row := range t.admins {
		r := *row
		c.admins[id] = &r
	}
	for id, row := range t.topics {
		r := *row
		c.topics[id] = &r
	}
	for id, row := range t.lessons {
		r := *row
		c.lessons[id] = &r
	}
	for id, row := range t.quizzes {
		r := *row
		c.quizzes[id] = &r
	}
	for id, opts := range t.options {
		c.options[id] = append([]content.QuizOption(nil), opts...)
	}
	for id, row := range t.students {
		r := *row
		c.students[id] = &r
	}
	for id, p := range t.progress {
		r := *p
		c.progress[id] = &r
	}
	c.attempts = append([]progress.Attempt(nil), t.attempts...)
	return c
}

// RunInTx runs fn with a nil executor. When fn fails (or panics) every table is put back
// to the state it had before fn ran.
func (db *DB) RunInTx(_ context.Context, fn func(tx core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.data.clone()
	db.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			db.restore(snapshot)
			panic(p)
		}
		if err != nil {
			db.restore(snapshot)
		}
	}()
	return fn(nil)
}

func (db *DB) restore(snapshot *tableSet) {
	db.mu.Lock()
	db.data = snapshot
	db.mu.Unlock()
}
