package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
)

// EmojiRef selects an emoji by numeric id or by symbol.
type EmojiRef = store.EmojiRef

// IncrementEmoji adds count reactions, creating the emoji on first use.
func (a *App) IncrementEmoji(ctx context.Context, studyID int64, ref EmojiRef, count int) (domain.StudyEmoji, error) {
	if count < 1 {
		return domain.StudyEmoji{}, ErrEmojiCount
	}
	return a.adjustEmoji(ctx, studyID, ref, count)
}

// DecrementEmoji removes count reactions. The counter row is deleted once
// it reaches zero.
func (a *App) DecrementEmoji(ctx context.Context, studyID int64, ref EmojiRef, count int) (domain.StudyEmoji, error) {
	if count < 1 {
		return domain.StudyEmoji{}, ErrEmojiCount
	}
	return a.adjustEmoji(ctx, studyID, ref, -count)
}

func (a *App) adjustEmoji(ctx context.Context, studyID int64, ref EmojiRef, delta int) (domain.StudyEmoji, error) {
	ref.Symbol = strings.TrimSpace(ref.Symbol)
	if ref.ID <= 0 && ref.Symbol == "" {
		return domain.StudyEmoji{}, badRequest("emoji id required")
	}
	if err := a.requireStudy(ctx, studyID); err != nil {
		return domain.StudyEmoji{}, err
	}
	se, err := a.store.AdjustEmoji(ctx, studyID, ref, delta)
	if errors.Is(err, store.ErrNotFound) {
		return domain.StudyEmoji{}, ErrEmojiNotFound
	}
	if err != nil {
		return domain.StudyEmoji{}, fmt.Errorf("adjust emoji: %w", err)
	}
	return se, nil
}

func (a *App) requireStudy(ctx context.Context, studyID int64) error {
	_, ok, err := a.store.GetStudy(ctx, studyID)
	if err != nil {
		return fmt.Errorf("load study: %w", err)
	}
	if !ok {
		return ErrStudyNotFound
	}
	return nil
}
