package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
)

type habitStudyRow struct {
	HabitModel
	StudyID int64
}

// GetHabit loads a habit together with the study owning its bucket.
func (s *GormStore) GetHabit(ctx context.Context, habitID int64) (domain.HabitWithStudy, bool, error) {
	return getHabit(s.db.WithContext(ctx), habitID)
}

// ListStudyHabits returns a study's habits dated in [start, end).
func (s *GormStore) ListStudyHabits(ctx context.Context, studyID int64, start, end time.Time) ([]domain.Habit, error) {
	return listStudyHabits(s.db.WithContext(ctx), studyID, start, end)
}

// InHabitTx runs fn inside a database transaction.
func (s *GormStore) InHabitTx(ctx context.Context, fn func(HabitTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormHabitTx{tx: tx})
	})
}

type gormHabitTx struct {
	tx *gorm.DB
}

func (t *gormHabitTx) EnsureHistory(studyID int64, weekDate time.Time) (domain.HabitHistory, error) {
	model := HabitHistoryModel{StudyID: studyID, WeekDate: datatypes.Date(weekDate)}
	err := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "study_id"}, {Name: "week_date"}},
		DoNothing: true,
	}).Create(&model).Error
	if err != nil {
		return domain.HabitHistory{}, translateError(err)
	}
	var locked HabitHistoryModel
	err = t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("study_id = ? AND week_date = ?", studyID, datatypes.Date(weekDate)).
		First(&locked).Error
	if err != nil {
		return domain.HabitHistory{}, err
	}
	return historyFromModel(locked), nil
}

func (t *gormHabitTx) LockHistory(historyID int64) (domain.HabitHistory, error) {
	var model HabitHistoryModel
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", historyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.HabitHistory{}, ErrNotFound
	}
	if err != nil {
		return domain.HabitHistory{}, err
	}
	return historyFromModel(model), nil
}

func (t *gormHabitTx) FindHistory(studyID int64, weekDate time.Time) (domain.HabitHistory, bool, error) {
	var model HabitHistoryModel
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("study_id = ? AND week_date = ?", studyID, datatypes.Date(weekDate)).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.HabitHistory{}, false, nil
	}
	if err != nil {
		return domain.HabitHistory{}, false, err
	}
	return historyFromModel(model), true, nil
}

func (t *gormHabitTx) GetHabit(habitID int64) (domain.HabitWithStudy, bool, error) {
	return getHabit(t.tx, habitID)
}

func (t *gormHabitTx) ListHabits(historyID int64, start, end time.Time) ([]domain.Habit, error) {
	var models []HabitModel
	err := t.tx.
		Where("habit_history_id = ? AND date >= ? AND date < ?", historyID, start.UTC(), end.UTC()).
		Order("created_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return habitsFromModels(models), nil
}

func (t *gormHabitTx) ListStudyHabits(studyID int64, start, end time.Time) ([]domain.Habit, error) {
	return listStudyHabits(t.tx, studyID, start, end)
}

func (t *gormHabitTx) InsertHabit(h domain.Habit) (domain.Habit, error) {
	model := habitToModel(h)
	if err := t.tx.Create(&model).Error; err != nil {
		return domain.Habit{}, translateError(err)
	}
	return habitFromModel(model), nil
}

func (t *gormHabitTx) InsertHabits(hs []domain.Habit) (int, error) {
	if len(hs) == 0 {
		return 0, nil
	}
	models := make([]HabitModel, 0, len(hs))
	for _, h := range hs {
		models = append(models, habitToModel(h))
	}
	res := t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models)
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return int(res.RowsAffected), nil
}

func (t *gormHabitTx) SetHabitDone(habitID int64, done bool) error {
	res := t.tx.Model(&HabitModel{}).Where("id = ?", habitID).
		Updates(map[string]any{"is_done": done, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormHabitTx) RenameTitle(historyID int64, oldTitle, newTitle string) (int64, error) {
	res := t.tx.Model(&HabitModel{}).
		Where("habit_history_id = ? AND habit = ?", historyID, oldTitle).
		Updates(map[string]any{"habit": newTitle, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}

func (t *gormHabitTx) DeleteFrom(historyID int64, title string, from time.Time) (int64, error) {
	res := t.tx.
		Where("habit_history_id = ? AND habit = ? AND date >= ?", historyID, title, from.UTC()).
		Delete(&HabitModel{})
	return res.RowsAffected, res.Error
}

func (t *gormHabitTx) SaveDayFlags(h domain.HabitHistory) error {
	return t.tx.Model(&HabitHistoryModel{}).Where("id = ?", h.ID).Updates(map[string]any{
		"mon_done":   h.MonDone,
		"tue_done":   h.TueDone,
		"wed_done":   h.WedDone,
		"thu_done":   h.ThuDone,
		"fri_done":   h.FriDone,
		"sat_done":   h.SatDone,
		"sun_done":   h.SunDone,
		"updated_at": time.Now().UTC(),
	}).Error
}

func getHabit(db *gorm.DB, habitID int64) (domain.HabitWithStudy, bool, error) {
	var row habitStudyRow
	res := db.Table("habits").
		Select("habits.*, habit_histories.study_id AS study_id").
		Joins("JOIN habit_histories ON habit_histories.id = habits.habit_history_id").
		Where("habits.id = ?", habitID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return domain.HabitWithStudy{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.HabitWithStudy{}, false, nil
	}
	return domain.HabitWithStudy{Habit: habitFromModel(row.HabitModel), StudyID: row.StudyID}, true, nil
}

func listStudyHabits(db *gorm.DB, studyID int64, start, end time.Time) ([]domain.Habit, error) {
	var models []HabitModel
	err := db.Model(&HabitModel{}).
		Select("habits.*").
		Joins("JOIN habit_histories ON habit_histories.id = habits.habit_history_id").
		Where("habit_histories.study_id = ? AND habits.date >= ? AND habits.date < ?", studyID, start.UTC(), end.UTC()).
		Order("habits.created_at ASC").Order("habits.id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return habitsFromModels(models), nil
}

func habitToModel(h domain.Habit) HabitModel {
	return HabitModel{
		ID:             h.ID,
		Title:          h.Title,
		IsDone:         h.IsDone,
		Date:           h.Date.UTC(),
		HabitHistoryID: h.HabitHistoryID,
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}
}

func habitFromModel(m HabitModel) domain.Habit {
	return domain.Habit{
		ID:             m.ID,
		Title:          m.Title,
		IsDone:         m.IsDone,
		Date:           m.Date.UTC(),
		HabitHistoryID: m.HabitHistoryID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func habitsFromModels(models []HabitModel) []domain.Habit {
	out := make([]domain.Habit, 0, len(models))
	for _, m := range models {
		out = append(out, habitFromModel(m))
	}
	return out
}

func historyFromModel(m HabitHistoryModel) domain.HabitHistory {
	wd := time.Time(m.WeekDate)
	h := domain.HabitHistory{
		ID:        m.ID,
		StudyID:   m.StudyID,
		WeekDate:  time.Date(wd.Year(), wd.Month(), wd.Day(), 0, 0, 0, 0, time.UTC),
		MonDone:   m.MonDone,
		TueDone:   m.TueDone,
		WedDone:   m.WedDone,
		ThuDone:   m.ThuDone,
		FriDone:   m.FriDone,
		SatDone:   m.SatDone,
		SunDone:   m.SunDone,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Habits) > 0 {
		h.Habits = habitsFromModels(m.Habits)
	}
	return h
}
