package main

import (
	"context"
	"testing"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/app"
)

func TestSeedPopulatesStudies(t *testing.T) {
	st := store.NewMemoryStore()
	a, err := app.New(app.Config{Store: st})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx := context.Background()
	ids, err := seed(ctx, a, seedOptions{Studies: 2, Password: "seed-pass", Habits: []string{"read", "run"}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 studies, got %v", ids)
	}

	today, err := a.ListToday(ctx, ids[1], "seed-pass")
	if err != nil {
		t.Fatalf("list today: %v", err)
	}
	if len(today.Habits) != 2 {
		t.Fatalf("expected 2 habits, got %d", len(today.Habits))
	}
	done := 0
	for _, h := range today.Habits {
		if h.IsDone {
			done++
		}
	}
	if done != 1 {
		t.Fatalf("expected one completed habit, got %d", done)
	}

	points, err := a.PointsSum(ctx, ids[1])
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if points.PointsSum != 20 {
		t.Fatalf("expected 20 points, got %d", points.PointsSum)
	}
}

func TestSeedRejectsNonPositiveCount(t *testing.T) {
	a, err := app.New(app.Config{Store: store.NewMemoryStore()})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := seed(context.Background(), a, seedOptions{Studies: 0, Password: "x"}); err == nil {
		t.Fatalf("expected error for zero studies")
	}
}
