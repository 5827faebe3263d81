package app

import (
	"context"
	"fmt"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
)

const maxPointAward = 1000

type PointsSummary struct {
	StudyID   int64 `json:"studyId"`
	PointsSum int64 `json:"pointsSum"`
}

type PointAward struct {
	Point     domain.Point `json:"point"`
	PointsSum int64        `json:"pointsSum"`
}

// AddPoint records a point event for the study.
func (a *App) AddPoint(ctx context.Context, studyID int64, password string, value int) (PointAward, error) {
	if _, err := a.AuthenticateStudy(ctx, studyID, password); err != nil {
		return PointAward{}, err
	}
	if value <= 0 || value > maxPointAward {
		return PointAward{}, badRequest(fmt.Sprintf("point must be between 1 and %d", maxPointAward))
	}
	p, err := a.store.AddPoint(ctx, domain.Point{StudyID: studyID, Value: value, CreatedAt: a.now().UTC()})
	if err != nil {
		return PointAward{}, fmt.Errorf("add point: %w", err)
	}
	sum, err := a.store.SumPoints(ctx, studyID)
	if err != nil {
		return PointAward{}, fmt.Errorf("sum points: %w", err)
	}
	return PointAward{Point: p, PointsSum: sum}, nil
}

// PointsSum returns the total of a study's point events.
func (a *App) PointsSum(ctx context.Context, studyID int64) (PointsSummary, error) {
	if err := a.requireStudy(ctx, studyID); err != nil {
		return PointsSummary{}, err
	}
	sum, err := a.store.SumPoints(ctx, studyID)
	if err != nil {
		return PointsSummary{}, fmt.Errorf("sum points: %w", err)
	}
	return PointsSummary{StudyID: studyID, PointsSum: sum}, nil
}
