package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Study is a study group. PasswordHash is an opaque digest and is never
// serialized.
type Study struct {
	ID           int64     `json:"id"`
	Nick         string    `json:"nick"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	Img          string    `json:"img"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StudyCounts holds related-row counts reported alongside a study.
type StudyCounts struct {
	Points         int64 `json:"points"`
	HabitHistories int64 `json:"habitHistories"`
	Focuses        int64 `json:"focuses"`
	StudyEmojis    int64 `json:"studyEmojis"`
}

// HabitHistory is the weekly bucket for a study's habits. The seven Done
// flags cache OR(isDone) over that weekday's habits and are recomputed by
// the ledger after every mutation.
type HabitHistory struct {
	ID        int64     `json:"id"`
	StudyID   int64     `json:"studyId"`
	WeekDate  time.Time `json:"weekDate"`
	MonDone   bool      `json:"monDone"`
	TueDone   bool      `json:"tueDone"`
	WedDone   bool      `json:"wedDone"`
	ThuDone   bool      `json:"thuDone"`
	FriDone   bool      `json:"friDone"`
	SatDone   bool      `json:"satDone"`
	SunDone   bool      `json:"sunDone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Habits    []Habit   `json:"habits,omitempty"`
}

// DayDone returns the cached flag for a weekday.
func (h HabitHistory) DayDone(day time.Weekday) bool {
	switch day {
	case time.Monday:
		return h.MonDone
	case time.Tuesday:
		return h.TueDone
	case time.Wednesday:
		return h.WedDone
	case time.Thursday:
		return h.ThuDone
	case time.Friday:
		return h.FriDone
	case time.Saturday:
		return h.SatDone
	default:
		return h.SunDone
	}
}

// SetDayDone overwrites the cached flag for a weekday.
func (h *HabitHistory) SetDayDone(day time.Weekday, done bool) {
	switch day {
	case time.Monday:
		h.MonDone = done
	case time.Tuesday:
		h.TueDone = done
	case time.Wednesday:
		h.WedDone = done
	case time.Thursday:
		h.ThuDone = done
	case time.Friday:
		h.FriDone = done
	case time.Saturday:
		h.SatDone = done
	default:
		h.SunDone = done
	}
}

// Habit is one checklist entry for a single KST day. Date is that day's
// KST midnight as a UTC instant.
type Habit struct {
	ID             int64     `json:"id"`
	Title          string    `json:"habit"`
	IsDone         bool      `json:"isDone"`
	Date           time.Time `json:"date"`
	HabitHistoryID int64     `json:"habitHistoryId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HabitWithStudy is a habit joined with the study that owns its bucket.
type HabitWithStudy struct {
	Habit
	StudyID int64
}

type Focus struct {
	ID        int64     `json:"id"`
	StudyID   int64     `json:"studyId"`
	SetTime   time.Time `json:"setTime"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Point struct {
	ID        int64     `json:"id"`
	StudyID   int64     `json:"studyId"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

type Emoji struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StudyEmoji is a per-study reaction counter.
type StudyEmoji struct {
	ID      int64 `json:"id"`
	StudyID int64 `json:"studyId"`
	Count   int   `json:"count"`
	Emoji   Emoji `json:"emoji"`
}
