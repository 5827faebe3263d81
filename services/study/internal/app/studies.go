package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/auth"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/storage"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
)

const (
	DefaultPageSize = 6
	MaxPageSize     = 50
)

// ListQuery is the public listing request. Unknown order values fall back
// to ascending points and most recent first.
type ListQuery struct {
	Offset      int
	Limit       int
	Keyword     string
	PointOrder  string
	RecentOrder string
	ActiveOnly  bool
}

type StudyListItem struct {
	domain.Study
	Counts    domain.StudyCounts `json:"_count"`
	PointsSum int64              `json:"pointsSum"`
}

type StudyList struct {
	Studies    []StudyListItem `json:"studies"`
	TotalCount int64           `json:"totalCount"`
}

type StudyDetail struct {
	domain.Study
	Counts         domain.StudyCounts    `json:"_count"`
	PointsSum      int64                 `json:"pointsSum"`
	StudyEmojis    []domain.StudyEmoji   `json:"studyEmojis"`
	HabitHistories []domain.HabitHistory `json:"habitHistories"`
}

type CreateStudyInput struct {
	Nick          string `json:"nick" validate:"required,max=30"`
	Name          string `json:"name" validate:"required,max=100"`
	Content       string `json:"content" validate:"max=2000"`
	Img           string `json:"img" validate:"max=500"`
	Password      string `json:"password" validate:"required,max=64"`
	CheckPassword string `json:"checkPassword" validate:"required"`
	IsActive      *bool  `json:"isActive"`
}

// UpdateStudyInput changes only the fields that are set.
type UpdateStudyInput struct {
	Nick     *string `json:"nick" validate:"omitempty,min=1,max=30"`
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Content  *string `json:"content" validate:"omitempty,max=2000"`
	Img      *string `json:"img" validate:"omitempty,max=500"`
	IsActive *bool   `json:"isActive"`
}

type StudyImage struct {
	Img string `json:"img"`
	URL string `json:"url"`
}

// ListStudies returns one page of studies and the total match count.
func (a *App) ListStudies(ctx context.Context, in ListQuery) (StudyList, error) {
	if in.Offset < 0 {
		return StudyList{}, badRequest("offset must not be negative")
	}
	limit := in.Limit
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	q := store.StudyQuery{
		Offset:     in.Offset,
		Limit:      limit,
		Keyword:    strings.TrimSpace(in.Keyword),
		PointsDesc: strings.EqualFold(in.PointOrder, "desc"),
		Oldest:     strings.EqualFold(in.RecentOrder, "old"),
		ActiveOnly: in.ActiveOnly,
	}

	var (
		rows  []store.StudySummary
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = a.store.ListStudies(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = a.store.CountStudies(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return StudyList{}, fmt.Errorf("list studies: %w", err)
	}
	return StudyList{Studies: a.listItems(ctx, rows), TotalCount: total}, nil
}

// ManageStudies returns every study with its counts, newest first.
func (a *App) ManageStudies(ctx context.Context) ([]StudyListItem, error) {
	rows, err := a.store.ListStudies(ctx, store.StudyQuery{PointsDesc: true})
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return a.listItems(ctx, rows), nil
}

// CreateStudy validates input, hashes the password and stores the study.
func (a *App) CreateStudy(ctx context.Context, in CreateStudyInput) (domain.Study, error) {
	in.Nick = strings.TrimSpace(in.Nick)
	in.Name = strings.TrimSpace(in.Name)
	in.Content = strings.TrimSpace(in.Content)
	in.Img = strings.TrimSpace(in.Img)
	if err := a.validate.StructCtx(ctx, in); err != nil {
		return domain.Study{}, validationError(err)
	}
	if in.Password != in.CheckPassword {
		return domain.Study{}, ErrPasswordConfirm
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Study{}, fmt.Errorf("hash password: %w", err)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	now := a.now().UTC()
	study, err := a.store.CreateStudy(ctx, domain.Study{
		Nick:         in.Nick,
		Name:         in.Name,
		Content:      in.Content,
		Img:          in.Img,
		PasswordHash: hash,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Study{}, fmt.Errorf("create study: %w", err)
	}
	return study, nil
}

// GetStudyDetail returns a study with emojis, habit histories and totals.
func (a *App) GetStudyDetail(ctx context.Context, studyID int64) (StudyDetail, error) {
	study, ok, err := a.store.GetStudy(ctx, studyID)
	if err != nil {
		return StudyDetail{}, fmt.Errorf("load study: %w", err)
	}
	if !ok {
		return StudyDetail{}, ErrStudyNotFound
	}
	detail := StudyDetail{Study: study}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		detail.Counts, err = a.store.StudyCounts(gctx, studyID)
		return err
	})
	g.Go(func() (err error) {
		detail.PointsSum, err = a.store.SumPoints(gctx, studyID)
		return err
	})
	g.Go(func() (err error) {
		detail.StudyEmojis, err = a.store.ListStudyEmojis(gctx, studyID)
		return err
	})
	g.Go(func() (err error) {
		detail.HabitHistories, err = a.store.ListHabitHistories(gctx, studyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return StudyDetail{}, fmt.Errorf("load study detail: %w", err)
	}
	detail.Img = a.resolveImage(ctx, detail.Img)
	return detail, nil
}

// UpdateStudy re-verifies the password and applies the set fields.
func (a *App) UpdateStudy(ctx context.Context, studyID int64, password string, in UpdateStudyInput) (domain.Study, error) {
	study, err := a.AuthenticateStudy(ctx, studyID, password)
	if err != nil {
		return domain.Study{}, err
	}
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(in.Nick)
	trim(in.Name)
	trim(in.Content)
	trim(in.Img)
	if err := a.validate.StructCtx(ctx, in); err != nil {
		return domain.Study{}, validationError(err)
	}
	if in.Nick != nil {
		study.Nick = *in.Nick
	}
	if in.Name != nil {
		study.Name = *in.Name
	}
	if in.Content != nil {
		study.Content = *in.Content
	}
	if in.Img != nil {
		study.Img = *in.Img
	}
	if in.IsActive != nil {
		study.IsActive = *in.IsActive
	}
	study.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateStudy(ctx, study); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Study{}, ErrStudyNotFound
		}
		return domain.Study{}, fmt.Errorf("update study: %w", err)
	}
	return study, nil
}

// DeleteStudy re-verifies the password and removes the study with every
// row hanging off it.
func (a *App) DeleteStudy(ctx context.Context, studyID int64, password string) error {
	study, err := a.AuthenticateStudy(ctx, studyID, password)
	if err != nil {
		return err
	}
	if err := a.store.DeleteStudy(ctx, studyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStudyNotFound
		}
		return fmt.Errorf("delete study: %w", err)
	}
	a.dropImage(ctx, study.Img)
	return nil
}

// UploadImage stores a banner image and points the study at it.
func (a *App) UploadImage(ctx context.Context, studyID int64, password string, r io.Reader, size int64, contentType string) (StudyImage, error) {
	if a.objects == nil {
		return StudyImage{}, ErrImageUnavailable
	}
	study, err := a.AuthenticateStudy(ctx, studyID, password)
	if err != nil {
		return StudyImage{}, err
	}
	if size <= 0 || size > storage.MaxImageBytes {
		return StudyImage{}, badRequest(storage.ErrImageTooLarge.Error())
	}
	key, err := storage.StudyImageKey(studyID, util.NewID(), contentType)
	if err != nil {
		return StudyImage{}, badRequest(err.Error())
	}
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return StudyImage{}, fmt.Errorf("store image: %w", err)
	}
	previous := study.Img
	study.Img = key
	study.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateStudy(ctx, study); err != nil {
		a.dropImage(ctx, key)
		return StudyImage{}, fmt.Errorf("update study image: %w", err)
	}
	a.dropImage(ctx, previous)
	return StudyImage{Img: key, URL: a.resolveImage(ctx, key)}, nil
}

func (a *App) listItems(ctx context.Context, rows []store.StudySummary) []StudyListItem {
	items := make([]StudyListItem, 0, len(rows))
	for _, row := range rows {
		row.Study.Img = a.resolveImage(ctx, row.Study.Img)
		items = append(items, StudyListItem{Study: row.Study, Counts: row.Counts, PointsSum: row.PointsSum})
	}
	return items
}

// resolveImage swaps a stored object key for a presigned URL. Other values
// are returned unchanged.
func (a *App) resolveImage(ctx context.Context, img string) string {
	if a.objects == nil || !storage.IsObjectKey(img) {
		return img
	}
	url, err := a.objects.PresignGet(ctx, img, a.presignExpiry)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("presign study image failed", "key", img, "err", err)
		return img
	}
	return url
}

func (a *App) dropImage(ctx context.Context, img string) {
	if a.objects == nil || !storage.IsObjectKey(img) {
		return
	}
	if err := a.objects.Delete(ctx, img); err != nil {
		util.LoggerFromContext(ctx).Warn("delete study image failed", "key", img, "err", err)
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return badRequest("invalid request")
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return badRequest(field + " is required")
	case "max":
		return badRequest(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "min":
		return badRequest(fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	default:
		return badRequest(field + " is invalid")
	}
}
