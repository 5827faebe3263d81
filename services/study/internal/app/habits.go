package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/kst"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
)

const maxTitleLength = 100

// StudyRef is the study header attached to habit responses.
type StudyRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// HabitItem is one habit row for the current day.
type HabitItem struct {
	HabitID        int64     `json:"habitId"`
	Title          string    `json:"title"`
	IsDone         bool      `json:"isDone"`
	Date           time.Time `json:"date"`
	HabitHistoryID int64     `json:"habitHistoryId"`
}

type TodayLinks struct {
	FocusToday string `json:"focusToday"`
	Home       string `json:"home"`
}

type TodayHabits struct {
	Study  StudyRef    `json:"study"`
	Now    string      `json:"now"`
	Date   string      `json:"date"`
	Habits []HabitItem `json:"habits"`
	Links  TodayLinks  `json:"links"`
}

type CreatedHabits struct {
	TodayHabits
	CreatedCount int `json:"createdCount"`
}

type ToggledHabit struct {
	HabitID        int64     `json:"habitId"`
	IsDone         bool      `json:"isDone"`
	Date           time.Time `json:"date"`
	HabitHistoryID int64     `json:"habitHistoryId"`
}

// WeekSummary mirrors the seven cached day flags of a HabitHistory.
type WeekSummary struct {
	MonDone bool `json:"monDone"`
	TueDone bool `json:"tueDone"`
	WedDone bool `json:"wedDone"`
	ThuDone bool `json:"thuDone"`
	FriDone bool `json:"friDone"`
	SatDone bool `json:"satDone"`
	SunDone bool `json:"sunDone"`
}

type WeekInfo struct {
	Start    string       `json:"start"`
	End      string       `json:"end"`
	WeekDate string       `json:"weekDate"`
	Summary  *WeekSummary `json:"summary"`
}

type DayHabit struct {
	HabitID int64  `json:"habitId"`
	Title   string `json:"title"`
	IsDone  bool   `json:"isDone"`
}

type WeekHabits struct {
	Study StudyRef              `json:"study"`
	Week  WeekInfo              `json:"week"`
	Days  map[string][]DayHabit `json:"days"`
}

type RenameResult struct {
	Updated  int64  `json:"updated"`
	NewTitle string `json:"newTitle"`
}

type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}

type AddResult struct {
	Created HabitItem `json:"created"`
}

// ListToday returns the study's habits for the current KST day.
func (a *App) ListToday(ctx context.Context, studyID int64, password string) (TodayHabits, error) {
	study, err := a.AuthenticateStudy(ctx, studyID, password)
	if err != nil {
		return TodayHabits{}, err
	}
	day := kst.DayRange(a.now())
	habits, err := a.store.ListStudyHabits(ctx, studyID, day.StartUTC, day.EndUTC)
	if err != nil {
		return TodayHabits{}, fmt.Errorf("list today habits: %w", err)
	}
	return todayHabits(study, day, habits), nil
}

// CreateTodayBulk adds every distinct non-blank title for today. Titles
// already present today are skipped.
func (a *App) CreateTodayBulk(ctx context.Context, studyID int64, password string, titles []string) (CreatedHabits, error) {
	study, err := a.AuthenticateStudy(ctx, studyID, password)
	if err != nil {
		return CreatedHabits{}, err
	}
	titles, err = normalizeTitles(titles)
	if err != nil {
		return CreatedHabits{}, err
	}
	day := kst.DayRange(a.now())
	week := kst.WeekRange(day.StartUTC)

	var (
		created int
		habits  []domain.Habit
	)
	err = a.store.InHabitTx(ctx, func(tx store.HabitTx) error {
		hist, err := tx.EnsureHistory(studyID, week.WeekDate)
		if err != nil {
			return fmt.Errorf("ensure habit history: %w", err)
		}
		rows := make([]domain.Habit, 0, len(titles))
		for _, title := range titles {
			rows = append(rows, domain.Habit{Title: title, Date: day.StartUTC, HabitHistoryID: hist.ID})
		}
		if created, err = tx.InsertHabits(rows); err != nil {
			return fmt.Errorf("insert habits: %w", err)
		}
		if habits, err = tx.ListHabits(hist.ID, day.StartUTC, day.EndUTC); err != nil {
			return fmt.Errorf("list today habits: %w", err)
		}
		return nil
	})
	if err != nil {
		return CreatedHabits{}, err
	}
	return CreatedHabits{TodayHabits: todayHabits(study, day, habits), CreatedCount: created}, nil
}

// ToggleDone flips a today habit and recomputes its weekday flag in the
// same transaction, under the HabitHistory row lock.
func (a *App) ToggleDone(ctx context.Context, habitID int64, password string) (ToggledHabit, error) {
	target, ok, err := a.store.GetHabit(ctx, habitID)
	if err != nil {
		return ToggledHabit{}, fmt.Errorf("load habit: %w", err)
	}
	if !ok {
		return ToggledHabit{}, ErrHabitNotFound
	}
	if _, err := a.AuthenticateStudy(ctx, target.StudyID, password); err != nil {
		return ToggledHabit{}, err
	}
	day := kst.DayRange(a.now())

	var out ToggledHabit
	err = a.store.InHabitTx(ctx, func(tx store.HabitTx) error {
		hist, err := tx.LockHistory(target.HabitHistoryID)
		if err != nil {
			return lockError(err)
		}
		cur, ok, err := tx.GetHabit(habitID)
		if err != nil {
			return fmt.Errorf("reload habit: %w", err)
		}
		if !ok {
			return ErrHabitNotFound
		}
		if !day.Contains(cur.Date) {
			return ErrNotToday
		}
		done := !cur.IsDone
		if err := tx.SetHabitDone(habitID, done); err != nil {
			return fmt.Errorf("set habit done: %w", err)
		}
		if err := recomputeDay(tx, &hist, cur.Date); err != nil {
			return err
		}
		if err := tx.SaveDayFlags(hist); err != nil {
			return fmt.Errorf("save day flags: %w", err)
		}
		out = ToggledHabit{HabitID: cur.ID, IsDone: done, Date: cur.Date, HabitHistoryID: cur.HabitHistoryID}
		return nil
	})
	if err != nil {
		return ToggledHabit{}, err
	}
	return out, nil
}

// GetWeek returns the KST week containing dateStr (or now) bucketed by
// local date. Summary is nil when the week has no HabitHistory yet.
func (a *App) GetWeek(ctx context.Context, studyID int64, password, dateStr string) (WeekHabits, error) {
	study, err := a.AuthenticateStudy(ctx, studyID, password)
	if err != nil {
		return WeekHabits{}, err
	}
	ref := a.now()
	if s := strings.TrimSpace(dateStr); s != "" {
		if ref, err = kst.ParseDate(s); err != nil {
			return WeekHabits{}, ErrInvalidDate
		}
	}
	week := kst.WeekRange(ref)

	var (
		hist    domain.HabitHistory
		hasHist bool
		habits  []domain.Habit
	)
	// Both reads share one transaction so the summary matches the rows.
	err = a.store.InHabitTx(ctx, func(tx store.HabitTx) error {
		var err error
		hist, hasHist, err = tx.FindHistory(studyID, week.WeekDate)
		if err != nil {
			return fmt.Errorf("load habit history: %w", err)
		}
		habits, err = tx.ListStudyHabits(studyID, week.StartUTC, week.EndUTC)
		if err != nil {
			return fmt.Errorf("list week habits: %w", err)
		}
		return nil
	})
	if err != nil {
		return WeekHabits{}, err
	}

	days := week.Days()
	buckets := make(map[string][]DayHabit, len(days))
	for _, d := range days {
		buckets[d.LocalDate] = []DayHabit{}
	}
	for _, h := range habits {
		key := kst.LocalDate(h.Date)
		buckets[key] = append(buckets[key], DayHabit{HabitID: h.ID, Title: h.Title, IsDone: h.IsDone})
	}
	info := WeekInfo{
		Start:    days[0].LocalDate,
		End:      days[len(days)-1].LocalDate,
		WeekDate: week.WeekDate.Format(time.DateOnly),
	}
	if hasHist {
		info.Summary = summaryOf(hist)
	}
	return WeekHabits{Study: studyRef(study), Week: info, Days: buckets}, nil
}

// RenameToday renames a today habit and every other row sharing its old
// title in the same HabitHistory. Any day that already holds newTitle
// alongside the old title is reported as a conflict and nothing changes.
func (a *App) RenameToday(ctx context.Context, studyID int64, password string, habitID int64, newTitle string) (RenameResult, error) {
	if _, err := a.AuthenticateStudy(ctx, studyID, password); err != nil {
		return RenameResult{}, err
	}
	newTitle, err := normalizeTitle(newTitle)
	if err != nil {
		return RenameResult{}, err
	}
	day := kst.DayRange(a.now())

	var out RenameResult
	err = a.store.InHabitTx(ctx, func(tx store.HabitTx) error {
		target, hist, err := lockTodayHabit(tx, studyID, habitID, day)
		if err != nil {
			return err
		}
		if target.Title == newTitle {
			out = RenameResult{Updated: 0, NewTitle: newTitle}
			return nil
		}
		week := kst.WeekRange(hist.WeekDate)
		rows, err := tx.ListHabits(hist.ID, week.StartUTC, week.EndUTC)
		if err != nil {
			return fmt.Errorf("list history habits: %w", err)
		}
		if conflicts := renameConflicts(rows, target.Title, newTitle); len(conflicts) > 0 {
			return titleConflict(conflicts)
		}
		n, err := tx.RenameTitle(hist.ID, target.Title, newTitle)
		if errors.Is(err, store.ErrDuplicate) {
			return titleConflict([]string{day.LocalDate})
		}
		if err != nil {
			return fmt.Errorf("rename habit: %w", err)
		}
		out = RenameResult{Updated: n, NewTitle: newTitle}
		return nil
	})
	if err != nil {
		return RenameResult{}, err
	}
	return out, nil
}

// DeleteFromToday ends a habit: rows sharing its title dated today or later
// are removed, earlier rows stay. Day flags are recomputed for the week.
func (a *App) DeleteFromToday(ctx context.Context, studyID int64, password string, habitID int64) (DeleteResult, error) {
	if _, err := a.AuthenticateStudy(ctx, studyID, password); err != nil {
		return DeleteResult{}, err
	}
	day := kst.DayRange(a.now())

	var out DeleteResult
	err := a.store.InHabitTx(ctx, func(tx store.HabitTx) error {
		target, ok, err := tx.GetHabit(habitID)
		if err != nil {
			return fmt.Errorf("load habit: %w", err)
		}
		if !ok || target.StudyID != studyID {
			return ErrHabitNotFound
		}
		hist, err := tx.LockHistory(target.HabitHistoryID)
		if err != nil {
			return lockError(err)
		}
		// A rename may have committed while we waited on the lock.
		target, ok, err = tx.GetHabit(habitID)
		if err != nil {
			return fmt.Errorf("load habit: %w", err)
		}
		if !ok || target.StudyID != studyID || target.HabitHistoryID != hist.ID {
			return ErrHabitNotFound
		}
		n, err := tx.DeleteFrom(hist.ID, target.Title, day.StartUTC)
		if err != nil {
			return fmt.Errorf("delete habits: %w", err)
		}
		if err := recomputeWeek(tx, &hist); err != nil {
			return err
		}
		if err := tx.SaveDayFlags(hist); err != nil {
			return fmt.Errorf("save day flags: %w", err)
		}
		out = DeleteResult{Deleted: n}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return out, nil
}

// AddSingleToday adds one title for today or fails with a conflict when the
// title already exists today.
func (a *App) AddSingleToday(ctx context.Context, studyID int64, password, title string) (AddResult, error) {
	if _, err := a.AuthenticateStudy(ctx, studyID, password); err != nil {
		return AddResult{}, err
	}
	title, err := normalizeTitle(title)
	if err != nil {
		return AddResult{}, err
	}
	day := kst.DayRange(a.now())
	week := kst.WeekRange(day.StartUTC)

	var out AddResult
	err = a.store.InHabitTx(ctx, func(tx store.HabitTx) error {
		hist, err := tx.EnsureHistory(studyID, week.WeekDate)
		if err != nil {
			return fmt.Errorf("ensure habit history: %w", err)
		}
		today, err := tx.ListHabits(hist.ID, day.StartUTC, day.EndUTC)
		if err != nil {
			return fmt.Errorf("list today habits: %w", err)
		}
		for _, h := range today {
			if h.Title == title {
				return ErrDuplicateTitle
			}
		}
		created, err := tx.InsertHabit(domain.Habit{Title: title, Date: day.StartUTC, HabitHistoryID: hist.ID})
		if errors.Is(err, store.ErrDuplicate) {
			return ErrDuplicateTitle
		}
		if err != nil {
			return fmt.Errorf("insert habit: %w", err)
		}
		out = AddResult{Created: habitItem(created)}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	return out, nil
}

// lockTodayHabit resolves a today habit of the study and locks its
// HabitHistory. The habit is re-read after the lock is held.
func lockTodayHabit(tx store.HabitTx, studyID, habitID int64, day kst.Day) (domain.HabitWithStudy, domain.HabitHistory, error) {
	check := func() (domain.HabitWithStudy, error) {
		h, ok, err := tx.GetHabit(habitID)
		if err != nil {
			return domain.HabitWithStudy{}, fmt.Errorf("load habit: %w", err)
		}
		if !ok || h.StudyID != studyID || !day.Contains(h.Date) {
			return domain.HabitWithStudy{}, ErrHabitNotFound
		}
		return h, nil
	}
	target, err := check()
	if err != nil {
		return domain.HabitWithStudy{}, domain.HabitHistory{}, err
	}
	hist, err := tx.LockHistory(target.HabitHistoryID)
	if err != nil {
		return domain.HabitWithStudy{}, domain.HabitHistory{}, lockError(err)
	}
	if target, err = check(); err != nil {
		return domain.HabitWithStudy{}, domain.HabitHistory{}, err
	}
	return target, hist, nil
}

// recomputeDay sets the weekday flag for date to OR(isDone) over that day's
// rows in the history.
func recomputeDay(tx store.HabitTx, hist *domain.HabitHistory, date time.Time) error {
	day := kst.DayRange(date)
	rows, err := tx.ListHabits(hist.ID, day.StartUTC, day.EndUTC)
	if err != nil {
		return fmt.Errorf("list day habits: %w", err)
	}
	anyDone := false
	for _, r := range rows {
		anyDone = anyDone || r.IsDone
	}
	hist.SetDayDone(kst.Weekday(date), anyDone)
	return nil
}

// recomputeWeek rebuilds all seven flags from the history's rows.
func recomputeWeek(tx store.HabitTx, hist *domain.HabitHistory) error {
	week := kst.WeekRange(hist.WeekDate)
	rows, err := tx.ListHabits(hist.ID, week.StartUTC, week.EndUTC)
	if err != nil {
		return fmt.Errorf("list week habits: %w", err)
	}
	var done [7]bool
	for _, r := range rows {
		if r.IsDone {
			done[kst.Weekday(r.Date)] = true
		}
	}
	for wd, v := range done {
		hist.SetDayDone(time.Weekday(wd), v)
	}
	return nil
}

func renameConflicts(rows []domain.Habit, oldTitle, newTitle string) []string {
	oldDates := make(map[string]struct{})
	for _, r := range rows {
		if r.Title == oldTitle {
			oldDates[kst.LocalDate(r.Date)] = struct{}{}
		}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if r.Title != newTitle {
			continue
		}
		date := kst.LocalDate(r.Date)
		if _, ok := oldDates[date]; !ok {
			continue
		}
		if _, dup := seen[date]; dup {
			continue
		}
		seen[date] = struct{}{}
		out = append(out, date)
	}
	sort.Strings(out)
	return out
}

func lockError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrHabitNotFound
	}
	return fmt.Errorf("lock habit history: %w", err)
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", badRequest(fmt.Sprintf("habit title must be at most %d characters", maxTitleLength))
	}
	return title, nil
}

// normalizeTitles trims, drops blanks and de-duplicates preserving order.
func normalizeTitles(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		title, err := normalizeTitle(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, title)
	}
	if len(out) == 0 {
		return nil, ErrTitleRequired
	}
	return out, nil
}

func todayHabits(study domain.Study, day kst.Day, habits []domain.Habit) TodayHabits {
	items := make([]HabitItem, 0, len(habits))
	for _, h := range habits {
		items = append(items, habitItem(h))
	}
	return TodayHabits{
		Study:  studyRef(study),
		Now:    day.LocalTimestamp,
		Date:   day.LocalDate,
		Habits: items,
		Links: TodayLinks{
			FocusToday: fmt.Sprintf("/studies/%d/focus-today", study.ID),
			Home:       fmt.Sprintf("/studies/%d", study.ID),
		},
	}
}

func habitItem(h domain.Habit) HabitItem {
	return HabitItem{HabitID: h.ID, Title: h.Title, IsDone: h.IsDone, Date: h.Date, HabitHistoryID: h.HabitHistoryID}
}

func studyRef(s domain.Study) StudyRef {
	return StudyRef{ID: s.ID, Name: s.Name, IsActive: s.IsActive}
}

func summaryOf(h domain.HabitHistory) *WeekSummary {
	return &WeekSummary{
		MonDone: h.MonDone,
		TueDone: h.TueDone,
		WedDone: h.WedDone,
		ThuDone: h.ThuDone,
		FriDone: h.FriDone,
		SatDone: h.SatDone,
		SunDone: h.SunDone,
	}
}
