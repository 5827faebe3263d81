package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type StudyModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Nick      string `gorm:"size:30;not null"`
	Name      string `gorm:"size:100;not null"`
	Content   string `gorm:"type:text;not null"`
	Img       string
	Password  string    `gorm:"not null"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time

	HabitHistories []HabitHistoryModel `gorm:"foreignKey:StudyID;constraint:OnDelete:CASCADE"`
	Focuses        []FocusModel        `gorm:"foreignKey:StudyID;constraint:OnDelete:CASCADE"`
	Points         []PointModel        `gorm:"foreignKey:StudyID;constraint:OnDelete:CASCADE"`
	StudyEmojis    []StudyEmojiModel   `gorm:"foreignKey:StudyID;constraint:OnDelete:CASCADE"`
}

func (StudyModel) TableName() string { return "studies" }

// HabitHistoryModel is unique per (study_id, week_date).
type HabitHistoryModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	StudyID   int64          `gorm:"not null;uniqueIndex:idx_habit_history_study_week,priority:1"`
	WeekDate  datatypes.Date `gorm:"not null;uniqueIndex:idx_habit_history_study_week,priority:2"`
	MonDone   bool           `gorm:"not null"`
	TueDone   bool           `gorm:"not null"`
	WedDone   bool           `gorm:"not null"`
	ThuDone   bool           `gorm:"not null"`
	FriDone   bool           `gorm:"not null"`
	SatDone   bool           `gorm:"not null"`
	SunDone   bool           `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time

	Habits []HabitModel `gorm:"foreignKey:HabitHistoryID;constraint:OnDelete:CASCADE"`
}

func (HabitHistoryModel) TableName() string { return "habit_histories" }

// HabitModel is unique per (habit_history_id, date, habit).
type HabitModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Title          string    `gorm:"column:habit;not null;uniqueIndex:idx_habit_history_date_title,priority:3"`
	IsDone         bool      `gorm:"not null"`
	Date           time.Time `gorm:"not null;index;uniqueIndex:idx_habit_history_date_title,priority:2"`
	HabitHistoryID int64     `gorm:"not null;uniqueIndex:idx_habit_history_date_title,priority:1"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time
}

func (HabitModel) TableName() string { return "habits" }

type FocusModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	StudyID   int64     `gorm:"not null;index"`
	SetTime   time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (FocusModel) TableName() string { return "focuses" }

type PointModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	StudyID   int64     `gorm:"not null;index"`
	Value     int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (PointModel) TableName() string { return "points" }

type EmojiModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Symbol    string `gorm:"uniqueIndex;not null"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EmojiModel) TableName() string { return "emojis" }

// StudyEmojiModel is unique per (study_id, emoji_id).
type StudyEmojiModel struct {
	ID      int64      `gorm:"primaryKey;autoIncrement"`
	StudyID int64      `gorm:"not null;uniqueIndex:idx_study_emoji,priority:1"`
	EmojiID int64      `gorm:"not null;uniqueIndex:idx_study_emoji,priority:2"`
	Count   int        `gorm:"not null"`
	Emoji   EmojiModel `gorm:"foreignKey:EmojiID"`
}

func (StudyEmojiModel) TableName() string { return "study_emojis" }

func allModels() []any {
	return []any{
		&UserModel{},
		&StudyModel{},
		&HabitHistoryModel{},
		&HabitModel{},
		&FocusModel{},
		&PointModel{},
		&EmojiModel{},
		&StudyEmojiModel{},
	}
}
