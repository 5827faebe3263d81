package app

import (
	"context"
	"fmt"
	"time"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/kst"
)

type FocusItem struct {
	ID      int64     `json:"id"`
	SetTime time.Time `json:"setTime"`
}

// ListFocus returns a study's focus timer rows.
func (a *App) ListFocus(ctx context.Context, studyID int64) ([]FocusItem, error) {
	if err := a.requireStudy(ctx, studyID); err != nil {
		return nil, err
	}
	rows, err := a.store.ListFocuses(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("list focus: %w", err)
	}
	out := make([]FocusItem, 0, len(rows))
	for _, f := range rows {
		out = append(out, FocusItem{ID: f.ID, SetTime: f.SetTime})
	}
	return out, nil
}

// UpdateFocus sets today's (KST) focus timer to now plus the given span,
// creating the row on the first update of the day.
func (a *App) UpdateFocus(ctx context.Context, studyID int64, minutes, seconds int) (domain.Focus, error) {
	if minutes < 0 {
		return domain.Focus{}, badRequest("minuteData must not be negative")
	}
	if seconds < 0 || seconds > 59 {
		return domain.Focus{}, badRequest("secondData must be between 0 and 59")
	}
	if err := a.requireStudy(ctx, studyID); err != nil {
		return domain.Focus{}, err
	}
	now := a.now().UTC()
	day := kst.DayRange(now)
	delta := time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	f, err := a.store.UpsertFocus(ctx, studyID, day.StartUTC, day.EndUTC, now.Add(delta))
	if err != nil {
		return domain.Focus{}, fmt.Errorf("update focus: %w", err)
	}
	return f, nil
}
