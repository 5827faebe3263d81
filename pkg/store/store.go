package store

import (
	"context"
	"errors"
	"time"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
)

var (
	// ErrNotFound is returned when a mutation targets a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists user accounts.
type UserStore interface {
	SaveUser(ctx context.Context, u domain.User) error
	HasUserEmail(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
}

// StudyQuery filters and orders study listings.
type StudyQuery struct {
	Offset int
	// Limit of zero returns every match.
	Limit   int
	Keyword string
	// PointsDesc orders by point total descending instead of ascending.
	PointsDesc bool
	// Oldest orders ties by creation time ascending instead of newest first.
	Oldest     bool
	ActiveOnly bool
}

// StudySummary is a study with its related-row counts.
type StudySummary struct {
	domain.Study
	Counts    domain.StudyCounts
	PointsSum int64
}

// EmojiRef identifies an emoji either by id or by symbol.
type EmojiRef struct {
	ID     int64
	Symbol string
}

// StudyStore persists studies and the plain counters hanging off them.
type StudyStore interface {
	CreateStudy(ctx context.Context, s domain.Study) (domain.Study, error)
	GetStudy(ctx context.Context, id int64) (domain.Study, bool, error)
	UpdateStudy(ctx context.Context, s domain.Study) error
	DeleteStudy(ctx context.Context, id int64) error
	ListStudies(ctx context.Context, q StudyQuery) ([]StudySummary, error)
	CountStudies(ctx context.Context, q StudyQuery) (int64, error)
	StudyCounts(ctx context.Context, id int64) (domain.StudyCounts, error)
	ListHabitHistories(ctx context.Context, studyID int64) ([]domain.HabitHistory, error)

	// AdjustEmoji adds delta to a study's reaction counter. Positive deltas
	// create the emoji and counter on demand; a counter that drops to zero
	// or below is removed and returned with Count 0.
	AdjustEmoji(ctx context.Context, studyID int64, ref EmojiRef, delta int) (domain.StudyEmoji, error)
	ListStudyEmojis(ctx context.Context, studyID int64) ([]domain.StudyEmoji, error)

	AddPoint(ctx context.Context, p domain.Point) (domain.Point, error)
	SumPoints(ctx context.Context, studyID int64) (int64, error)

	ListFocuses(ctx context.Context, studyID int64) ([]domain.Focus, error)
	// UpsertFocus sets setTime on the newest focus row created in
	// [dayStart, dayEnd), creating one if none exists.
	UpsertFocus(ctx context.Context, studyID int64, dayStart, dayEnd, setTime time.Time) (domain.Focus, error)
}

// HabitStore persists weekly habit buckets and their daily entries.
type HabitStore interface {
	GetHabit(ctx context.Context, habitID int64) (domain.HabitWithStudy, bool, error)
	ListStudyHabits(ctx context.Context, studyID int64, start, end time.Time) ([]domain.Habit, error)
	// InHabitTx runs fn in a single transaction. Returning an error from fn
	// rolls back every write made through the HabitTx.
	InHabitTx(ctx context.Context, fn func(HabitTx) error) error
}

// HabitTx is the transactional view used by ledger mutations. Rows read
// through LockHistory or EnsureHistory stay locked until the transaction
// ends, which serializes writers within one weekly bucket.
type HabitTx interface {
	EnsureHistory(studyID int64, weekDate time.Time) (domain.HabitHistory, error)
	LockHistory(historyID int64) (domain.HabitHistory, error)
	// FindHistory locks the bucket for (studyID, weekDate) when it exists.
	FindHistory(studyID int64, weekDate time.Time) (domain.HabitHistory, bool, error)
	GetHabit(habitID int64) (domain.HabitWithStudy, bool, error)
	ListHabits(historyID int64, start, end time.Time) ([]domain.Habit, error)
	ListStudyHabits(studyID int64, start, end time.Time) ([]domain.Habit, error)
	// InsertHabit returns ErrDuplicate when (history, date, title) exists.
	InsertHabit(h domain.Habit) (domain.Habit, error)
	// InsertHabits skips rows that collide and reports how many were stored.
	InsertHabits(hs []domain.Habit) (int, error)
	SetHabitDone(habitID int64, done bool) error
	RenameTitle(historyID int64, oldTitle, newTitle string) (int64, error)
	DeleteFrom(historyID int64, title string, from time.Time) (int64, error)
	SaveDayFlags(h domain.HabitHistory) error
}

// Store is the full persistence surface used by the study service.
type Store interface {
	StudyStore
	HabitStore
}
