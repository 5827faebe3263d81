package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
)

// CreateStudy inserts a study and returns it with its generated id.
func (s *GormStore) CreateStudy(ctx context.Context, study domain.Study) (domain.Study, error) {
	model := studyToModel(study)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Study{}, translateError(err)
	}
	return studyFromModel(model), nil
}

// GetStudy returns a study by id.
func (s *GormStore) GetStudy(ctx context.Context, id int64) (domain.Study, bool, error) {
	var model StudyModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Study{}, false, nil
	}
	if err != nil {
		return domain.Study{}, false, err
	}
	return studyFromModel(model), true, nil
}

// UpdateStudy overwrites the mutable study fields.
func (s *GormStore) UpdateStudy(ctx context.Context, study domain.Study) error {
	res := s.db.WithContext(ctx).Model(&StudyModel{}).Where("id = ?", study.ID).Updates(map[string]any{
		"nick":       study.Nick,
		"name":       study.Name,
		"content":    study.Content,
		"img":        study.Img,
		"is_active":  study.IsActive,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStudy removes a study and every row hanging off it.
func (s *GormStore) DeleteStudy(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		histories := tx.Model(&HabitHistoryModel{}).Select("id").Where("study_id = ?", id)
		if err := tx.Where("habit_history_id IN (?)", histories).Delete(&HabitModel{}).Error; err != nil {
			return err
		}
		for _, model := range []any{&HabitHistoryModel{}, &FocusModel{}, &PointModel{}, &StudyEmojiModel{}} {
			if err := tx.Where("study_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&StudyModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type studyListRow struct {
	StudyModel
	PointsSum int64
}

// ListStudies returns one page of studies with their counts.
func (s *GormStore) ListStudies(ctx context.Context, q StudyQuery) ([]StudySummary, error) {
	db := s.db.WithContext(ctx)
	pointsDir := "ASC"
	if q.PointsDesc {
		pointsDir = "DESC"
	}
	createdDir := "DESC"
	if q.Oldest {
		createdDir = "ASC"
	}
	query := filterStudies(db.Model(&StudyModel{}), q).
		Select("studies.*, COALESCE((SELECT SUM(points.value) FROM points WHERE points.study_id = studies.id), 0) AS points_sum").
		Order("points_sum " + pointsDir).
		Order("studies.created_at " + createdDir).
		Order("studies.id " + createdDir).
		Offset(q.Offset)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	var rows []studyListRow
	err := query.Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []StudySummary{}, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	counts, err := s.countsFor(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]StudySummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, StudySummary{
			Study:     studyFromModel(row.StudyModel),
			Counts:    counts[row.ID],
			PointsSum: row.PointsSum,
		})
	}
	return out, nil
}

// CountStudies counts studies matching the query filters.
func (s *GormStore) CountStudies(ctx context.Context, q StudyQuery) (int64, error) {
	var total int64
	err := filterStudies(s.db.WithContext(ctx).Model(&StudyModel{}), q).Count(&total).Error
	return total, err
}

// StudyCounts returns related-row counts for one study.
func (s *GormStore) StudyCounts(ctx context.Context, id int64) (domain.StudyCounts, error) {
	counts, err := s.countsFor(s.db.WithContext(ctx), []int64{id})
	if err != nil {
		return domain.StudyCounts{}, err
	}
	return counts[id], nil
}

// ListHabitHistories returns a study's weekly buckets, newest first, with
// their habits.
func (s *GormStore) ListHabitHistories(ctx context.Context, studyID int64) ([]domain.HabitHistory, error) {
	var models []HabitHistoryModel
	err := s.db.WithContext(ctx).
		Preload("Habits", func(db *gorm.DB) *gorm.DB {
			return db.Order("date ASC").Order("id ASC")
		}).
		Where("study_id = ?", studyID).
		Order("week_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.HabitHistory, 0, len(models))
	for _, m := range models {
		out = append(out, historyFromModel(m))
	}
	return out, nil
}

func filterStudies(db *gorm.DB, q StudyQuery) *gorm.DB {
	if q.ActiveOnly {
		db = db.Where("studies.is_active = ?", true)
	}
	if kw := strings.ToLower(strings.TrimSpace(q.Keyword)); kw != "" {
		like := "%" + escapeLike(kw) + "%"
		db = db.Where(`LOWER(studies.name) LIKE ? ESCAPE '\' OR LOWER(studies.nick) LIKE ? ESCAPE '\' OR LOWER(studies.content) LIKE ? ESCAPE '\'`, like, like, like)
	}
	return db
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes s match literally inside a LIKE pattern using '\' as the
// escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type studyCountRow struct {
	StudyID int64
	N       int64
}

func (s *GormStore) countsFor(db *gorm.DB, ids []int64) (map[int64]domain.StudyCounts, error) {
	out := make(map[int64]domain.StudyCounts, len(ids))
	tables := []struct {
		model any
		set   func(*domain.StudyCounts, int64)
	}{
		{&PointModel{}, func(c *domain.StudyCounts, n int64) { c.Points = n }},
		{&HabitHistoryModel{}, func(c *domain.StudyCounts, n int64) { c.HabitHistories = n }},
		{&FocusModel{}, func(c *domain.StudyCounts, n int64) { c.Focuses = n }},
		{&StudyEmojiModel{}, func(c *domain.StudyCounts, n int64) { c.StudyEmojis = n }},
	}
	for _, table := range tables {
		var rows []studyCountRow
		err := db.Model(table.model).
			Select("study_id, COUNT(*) AS n").
			Where("study_id IN ?", ids).
			Group("study_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			c := out[row.StudyID]
			table.set(&c, row.N)
			out[row.StudyID] = c
		}
	}
	return out, nil
}

// AdjustEmoji applies delta to a study's emoji counter.
func (s *GormStore) AdjustEmoji(ctx context.Context, studyID int64, ref EmojiRef, delta int) (domain.StudyEmoji, error) {
	var out domain.StudyEmoji
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		emoji, err := resolveEmoji(tx, ref, delta > 0)
		if err != nil {
			return err
		}
		if delta > 0 {
			counter := StudyEmojiModel{StudyID: studyID, EmojiID: emoji.ID, Count: delta}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "study_id"}, {Name: "emoji_id"}},
				DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("study_emojis.count + ?", delta)}),
			}).Omit("Emoji").Create(&counter).Error
			if err != nil {
				return translateError(err)
			}
		}

		var counter StudyEmojiModel
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("study_id = ? AND emoji_id = ?", studyID, emoji.ID).
			First(&counter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if delta < 0 {
			counter.Count += delta
			if counter.Count <= 0 {
				if err := tx.Delete(&StudyEmojiModel{}, "id = ?", counter.ID).Error; err != nil {
					return err
				}
				counter.Count = 0
			} else if err := tx.Model(&StudyEmojiModel{}).Where("id = ?", counter.ID).Update("count", counter.Count).Error; err != nil {
				return err
			}
		}
		counter.Emoji = emoji
		out = studyEmojiFromModel(counter)
		return nil
	})
	return out, err
}

func resolveEmoji(tx *gorm.DB, ref EmojiRef, create bool) (EmojiModel, error) {
	var emoji EmojiModel
	if ref.ID > 0 {
		err := tx.First(&emoji, "id = ?", ref.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emoji, ErrNotFound
		}
		return emoji, err
	}
	symbol := strings.TrimSpace(ref.Symbol)
	if symbol == "" {
		return emoji, ErrNotFound
	}
	if create {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoNothing: true,
		}).Create(&EmojiModel{Symbol: symbol, Name: symbol}).Error
		if err != nil {
			return emoji, translateError(err)
		}
	}
	err := tx.First(&emoji, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emoji, ErrNotFound
	}
	return emoji, err
}

// ListStudyEmojis returns a study's counters, highest count first.
func (s *GormStore) ListStudyEmojis(ctx context.Context, studyID int64) ([]domain.StudyEmoji, error) {
	var models []StudyEmojiModel
	err := s.db.WithContext(ctx).
		Preload("Emoji").
		Where("study_id = ?", studyID).
		Order("count DESC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.StudyEmoji, 0, len(models))
	for _, m := range models {
		out = append(out, studyEmojiFromModel(m))
	}
	return out, nil
}

// AddPoint records a point event.
func (s *GormStore) AddPoint(ctx context.Context, p domain.Point) (domain.Point, error) {
	model := PointModel{StudyID: p.StudyID, Value: p.Value, CreatedAt: p.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Point{}, err
	}
	return domain.Point{ID: model.ID, StudyID: model.StudyID, Value: model.Value, CreatedAt: model.CreatedAt}, nil
}

// SumPoints totals a study's point events.
func (s *GormStore) SumPoints(ctx context.Context, studyID int64) (int64, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&PointModel{}).
		Select("COALESCE(SUM(value), 0)").
		Where("study_id = ?", studyID).
		Scan(&sum).Error
	return sum, err
}

// ListFocuses returns a study's focus rows in creation order.
func (s *GormStore) ListFocuses(ctx context.Context, studyID int64) ([]domain.Focus, error) {
	var models []FocusModel
	err := s.db.WithContext(ctx).Where("study_id = ?", studyID).Order("created_at ASC").Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Focus, 0, len(models))
	for _, m := range models {
		out = append(out, focusFromModel(m))
	}
	return out, nil
}

// UpsertFocus updates the day's newest focus row or creates one.
func (s *GormStore) UpsertFocus(ctx context.Context, studyID int64, dayStart, dayEnd, setTime time.Time) (domain.Focus, error) {
	var out domain.Focus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model FocusModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("study_id = ? AND created_at >= ? AND created_at < ?", studyID, dayStart.UTC(), dayEnd.UTC()).
			Order("id DESC").
			First(&model).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model = FocusModel{StudyID: studyID, SetTime: setTime.UTC()}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			model.SetTime = setTime.UTC()
			model.UpdatedAt = time.Now().UTC()
			if err := tx.Model(&FocusModel{}).Where("id = ?", model.ID).
				Updates(map[string]any{"set_time": model.SetTime, "updated_at": model.UpdatedAt}).Error; err != nil {
				return err
			}
		}
		out = focusFromModel(model)
		return nil
	})
	return out, err
}

func studyToModel(s domain.Study) StudyModel {
	return StudyModel{
		ID:        s.ID,
		Nick:      s.Nick,
		Name:      s.Name,
		Content:   s.Content,
		Img:       s.Img,
		Password:  s.PasswordHash,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func studyFromModel(m StudyModel) domain.Study {
	return domain.Study{
		ID:           m.ID,
		Nick:         m.Nick,
		Name:         m.Name,
		Content:      m.Content,
		Img:          m.Img,
		PasswordHash: m.Password,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func studyEmojiFromModel(m StudyEmojiModel) domain.StudyEmoji {
	return domain.StudyEmoji{
		ID:      m.ID,
		StudyID: m.StudyID,
		Count:   m.Count,
		Emoji: domain.Emoji{
			ID:        m.Emoji.ID,
			Symbol:    m.Emoji.Symbol,
			Name:      m.Emoji.Name,
			CreatedAt: m.Emoji.CreatedAt,
			UpdatedAt: m.Emoji.UpdatedAt,
		},
	}
}

func focusFromModel(m FocusModel) domain.Focus {
	return domain.Focus{
		ID:        m.ID,
		StudyID:   m.StudyID,
		SetTime:   m.SetTime,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
