package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
)

// MemoryStore is an in-process Store for tests and local runs. Habit
// transactions hold the store lock for their whole duration and restore a
// snapshot when fn fails, which gives them serializable semantics.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time

	nextID int64

	users       map[string]domain.User
	studies     map[int64]domain.Study
	histories   map[int64]domain.HabitHistory
	habits      map[int64]domain.Habit
	focuses     map[int64]domain.Focus
	points      map[int64]domain.Point
	emojis      map[int64]domain.Emoji
	studyEmojis map[int64]domain.StudyEmoji
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         func() time.Time { return time.Now().UTC() },
		users:       make(map[string]domain.User),
		studies:     make(map[int64]domain.Study),
		histories:   make(map[int64]domain.HabitHistory),
		habits:      make(map[int64]domain.Habit),
		focuses:     make(map[int64]domain.Focus),
		points:      make(map[int64]domain.Point),
		emojis:      make(map[int64]domain.Emoji),
		studyEmojis: make(map[int64]domain.StudyEmoji),
	}
}

// SetClock overrides the timestamp source used for created/updated fields.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// users

func (s *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	_, ok, err := s.GetUserByEmail(ctx, email)
	return ok, err
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok, nil
}

// studies

func (s *MemoryStore) CreateStudy(_ context.Context, study domain.Study) (domain.Study, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	study.ID = s.id()
	now := s.now()
	if study.CreatedAt.IsZero() {
		study.CreatedAt = now
	}
	study.UpdatedAt = now
	s.studies[study.ID] = study
	return study, nil
}

func (s *MemoryStore) GetStudy(_ context.Context, id int64) (domain.Study, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	study, ok := s.studies[id]
	return study, ok, nil
}

func (s *MemoryStore) UpdateStudy(_ context.Context, study domain.Study) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.studies[study.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Nick = study.Nick
	existing.Name = study.Name
	existing.Content = study.Content
	existing.Img = study.Img
	existing.IsActive = study.IsActive
	existing.UpdatedAt = s.now()
	s.studies[study.ID] = existing
	return nil
}

func (s *MemoryStore) DeleteStudy(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.studies[id]; !ok {
		return ErrNotFound
	}
	for hid, h := range s.histories {
		if h.StudyID != id {
			continue
		}
		for habitID, habit := range s.habits {
			if habit.HabitHistoryID == hid {
				delete(s.habits, habitID)
			}
		}
		delete(s.histories, hid)
	}
	for fid, f := range s.focuses {
		if f.StudyID == id {
			delete(s.focuses, fid)
		}
	}
	for pid, p := range s.points {
		if p.StudyID == id {
			delete(s.points, pid)
		}
	}
	for eid, e := range s.studyEmojis {
		if e.StudyID == id {
			delete(s.studyEmojis, eid)
		}
	}
	delete(s.studies, id)
	return nil
}

func (s *MemoryStore) matchingStudies(q StudyQuery) []domain.Study {
	kw := strings.ToLower(strings.TrimSpace(q.Keyword))
	out := make([]domain.Study, 0, len(s.studies))
	for _, study := range s.studies {
		if q.ActiveOnly && !study.IsActive {
			continue
		}
		if kw != "" &&
			!strings.Contains(strings.ToLower(study.Name), kw) &&
			!strings.Contains(strings.ToLower(study.Nick), kw) &&
			!strings.Contains(strings.ToLower(study.Content), kw) {
			continue
		}
		out = append(out, study)
	}
	return out
}

func (s *MemoryStore) ListStudies(_ context.Context, q StudyQuery) ([]StudySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.matchingStudies(q)
	summaries := make([]StudySummary, 0, len(matches))
	for _, study := range matches {
		summaries = append(summaries, StudySummary{
			Study:     study,
			Counts:    s.countsLocked(study.ID),
			PointsSum: s.sumPointsLocked(study.ID),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.PointsSum != b.PointsSum {
			if q.PointsDesc {
				return a.PointsSum > b.PointsSum
			}
			return a.PointsSum < b.PointsSum
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if q.Oldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if q.Oldest {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
	if q.Offset >= len(summaries) {
		return []StudySummary{}, nil
	}
	summaries = summaries[q.Offset:]
	if q.Limit > 0 && q.Limit < len(summaries) {
		summaries = summaries[:q.Limit]
	}
	return summaries, nil
}

func (s *MemoryStore) CountStudies(_ context.Context, q StudyQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matchingStudies(q))), nil
}

func (s *MemoryStore) StudyCounts(_ context.Context, id int64) (domain.StudyCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countsLocked(id), nil
}

func (s *MemoryStore) countsLocked(id int64) domain.StudyCounts {
	var c domain.StudyCounts
	for _, p := range s.points {
		if p.StudyID == id {
			c.Points++
		}
	}
	for _, h := range s.histories {
		if h.StudyID == id {
			c.HabitHistories++
		}
	}
	for _, f := range s.focuses {
		if f.StudyID == id {
			c.Focuses++
		}
	}
	for _, e := range s.studyEmojis {
		if e.StudyID == id {
			c.StudyEmojis++
		}
	}
	return c
}

func (s *MemoryStore) ListHabitHistories(_ context.Context, studyID int64) ([]domain.HabitHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HabitHistory, 0)
	for _, h := range s.histories {
		if h.StudyID != studyID {
			continue
		}
		habits := make([]domain.Habit, 0)
		for _, habit := range s.habits {
			if habit.HabitHistoryID == h.ID {
				habits = append(habits, habit)
			}
		}
		sort.Slice(habits, func(i, j int) bool {
			if !habits[i].Date.Equal(habits[j].Date) {
				return habits[i].Date.Before(habits[j].Date)
			}
			return habits[i].ID < habits[j].ID
		})
		h.Habits = habits
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekDate.After(out[j].WeekDate) })
	return out, nil
}

// emojis, points, focus

func (s *MemoryStore) AdjustEmoji(_ context.Context, studyID int64, ref EmojiRef, delta int) (domain.StudyEmoji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emoji domain.Emoji
	found := false
	symbol := strings.TrimSpace(ref.Symbol)
	for _, e := range s.emojis {
		if (ref.ID > 0 && e.ID == ref.ID) || (ref.ID == 0 && symbol != "" && e.Symbol == symbol) {
			emoji, found = e, true
			break
		}
	}
	if !found {
		if delta <= 0 || ref.ID > 0 || symbol == "" {
			return domain.StudyEmoji{}, ErrNotFound
		}
		now := s.now()
		emoji = domain.Emoji{ID: s.id(), Symbol: symbol, Name: symbol, CreatedAt: now, UpdatedAt: now}
		s.emojis[emoji.ID] = emoji
	}

	var counter domain.StudyEmoji
	found = false
	for _, c := range s.studyEmojis {
		if c.StudyID == studyID && c.Emoji.ID == emoji.ID {
			counter, found = c, true
			break
		}
	}
	if !found {
		if delta <= 0 {
			return domain.StudyEmoji{}, ErrNotFound
		}
		counter = domain.StudyEmoji{ID: s.id(), StudyID: studyID}
	}
	counter.Emoji = emoji
	counter.Count += delta
	if counter.Count <= 0 {
		delete(s.studyEmojis, counter.ID)
		counter.Count = 0
		return counter, nil
	}
	s.studyEmojis[counter.ID] = counter
	return counter, nil
}

func (s *MemoryStore) ListStudyEmojis(_ context.Context, studyID int64) ([]domain.StudyEmoji, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StudyEmoji, 0)
	for _, c := range s.studyEmojis {
		if c.StudyID == studyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AddPoint(_ context.Context, p domain.Point) (domain.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.points[p.ID] = p
	return p, nil
}

func (s *MemoryStore) SumPoints(_ context.Context, studyID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumPointsLocked(studyID), nil
}

func (s *MemoryStore) sumPointsLocked(studyID int64) int64 {
	var sum int64
	for _, p := range s.points {
		if p.StudyID == studyID {
			sum += int64(p.Value)
		}
	}
	return sum
}

func (s *MemoryStore) ListFocuses(_ context.Context, studyID int64) ([]domain.Focus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Focus, 0)
	for _, f := range s.focuses {
		if f.StudyID == studyID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertFocus(_ context.Context, studyID int64, dayStart, dayEnd, setTime time.Time) (domain.Focus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var latest domain.Focus
	for _, f := range s.focuses {
		if f.StudyID != studyID || f.CreatedAt.Before(dayStart) || !f.CreatedAt.Before(dayEnd) {
			continue
		}
		if f.ID > latest.ID {
			latest = f
		}
	}
	if latest.ID == 0 {
		latest = domain.Focus{ID: s.id(), StudyID: studyID, CreatedAt: now}
	}
	latest.SetTime = setTime.UTC()
	latest.UpdatedAt = now
	s.focuses[latest.ID] = latest
	return latest, nil
}

// habits

func (s *MemoryStore) GetHabit(_ context.Context, habitID int64) (domain.HabitWithStudy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getHabitLocked(habitID)
}

func (s *MemoryStore) getHabitLocked(habitID int64) (domain.HabitWithStudy, bool, error) {
	h, ok := s.habits[habitID]
	if !ok {
		return domain.HabitWithStudy{}, false, nil
	}
	hist, ok := s.histories[h.HabitHistoryID]
	if !ok {
		return domain.HabitWithStudy{}, false, nil
	}
	return domain.HabitWithStudy{Habit: h, StudyID: hist.StudyID}, true, nil
}

func (s *MemoryStore) ListStudyHabits(_ context.Context, studyID int64, start, end time.Time) ([]domain.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterHabitsLocked(func(h domain.Habit) bool {
		hist, ok := s.histories[h.HabitHistoryID]
		return ok && hist.StudyID == studyID && inRange(h.Date, start, end)
	}), nil
}

func (s *MemoryStore) findHistoryLocked(studyID int64, weekDate time.Time) (domain.HabitHistory, bool) {
	for _, h := range s.histories {
		if h.StudyID == studyID && sameDate(h.WeekDate, weekDate) {
			return h, true
		}
	}
	return domain.HabitHistory{}, false
}

func (s *MemoryStore) filterHabitsLocked(keep func(domain.Habit) bool) []domain.Habit {
	out := make([]domain.Habit, 0)
	for _, h := range s.habits {
		if keep(h) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) InHabitTx(ctx context.Context, fn func(HabitTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	histories := make(map[int64]domain.HabitHistory, len(s.histories))
	for k, v := range s.histories {
		histories[k] = v
	}
	habits := make(map[int64]domain.Habit, len(s.habits))
	for k, v := range s.habits {
		habits[k] = v
	}
	nextID := s.nextID

	if err := fn(&memoryHabitTx{s: s}); err != nil {
		s.histories = histories
		s.habits = habits
		s.nextID = nextID
		return err
	}
	return nil
}

type memoryHabitTx struct {
	s *MemoryStore
}

func (t *memoryHabitTx) EnsureHistory(studyID int64, weekDate time.Time) (domain.HabitHistory, error) {
	if h, ok := t.s.findHistoryLocked(studyID, weekDate); ok {
		return h, nil
	}
	now := t.s.now()
	wd := weekDate.UTC()
	h := domain.HabitHistory{
		ID:        t.s.id(),
		StudyID:   studyID,
		WeekDate:  time.Date(wd.Year(), wd.Month(), wd.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.s.histories[h.ID] = h
	return h, nil
}

func (t *memoryHabitTx) LockHistory(historyID int64) (domain.HabitHistory, error) {
	h, ok := t.s.histories[historyID]
	if !ok {
		return domain.HabitHistory{}, ErrNotFound
	}
	return h, nil
}

func (t *memoryHabitTx) FindHistory(studyID int64, weekDate time.Time) (domain.HabitHistory, bool, error) {
	h, ok := t.s.findHistoryLocked(studyID, weekDate)
	return h, ok, nil
}

func (t *memoryHabitTx) GetHabit(habitID int64) (domain.HabitWithStudy, bool, error) {
	return t.s.getHabitLocked(habitID)
}

func (t *memoryHabitTx) ListHabits(historyID int64, start, end time.Time) ([]domain.Habit, error) {
	return t.s.filterHabitsLocked(func(h domain.Habit) bool {
		return h.HabitHistoryID == historyID && inRange(h.Date, start, end)
	}), nil
}

func (t *memoryHabitTx) ListStudyHabits(studyID int64, start, end time.Time) ([]domain.Habit, error) {
	return t.s.filterHabitsLocked(func(h domain.Habit) bool {
		hist, ok := t.s.histories[h.HabitHistoryID]
		return ok && hist.StudyID == studyID && inRange(h.Date, start, end)
	}), nil
}

func (t *memoryHabitTx) exists(historyID int64, date time.Time, title string, skipID int64) bool {
	for _, h := range t.s.habits {
		if h.ID != skipID && h.HabitHistoryID == historyID && h.Date.Equal(date) && h.Title == title {
			return true
		}
	}
	return false
}

func (t *memoryHabitTx) InsertHabit(h domain.Habit) (domain.Habit, error) {
	if _, ok := t.s.histories[h.HabitHistoryID]; !ok {
		return domain.Habit{}, ErrNotFound
	}
	if t.exists(h.HabitHistoryID, h.Date, h.Title, 0) {
		return domain.Habit{}, ErrDuplicate
	}
	now := t.s.now()
	h.ID = t.s.id()
	h.Date = h.Date.UTC()
	h.CreatedAt = now
	h.UpdatedAt = now
	t.s.habits[h.ID] = h
	return h, nil
}

func (t *memoryHabitTx) InsertHabits(hs []domain.Habit) (int, error) {
	created := 0
	for _, h := range hs {
		if _, err := t.InsertHabit(h); err != nil {
			if err == ErrDuplicate {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (t *memoryHabitTx) SetHabitDone(habitID int64, done bool) error {
	h, ok := t.s.habits[habitID]
	if !ok {
		return ErrNotFound
	}
	h.IsDone = done
	h.UpdatedAt = t.s.now()
	t.s.habits[habitID] = h
	return nil
}

func (t *memoryHabitTx) RenameTitle(historyID int64, oldTitle, newTitle string) (int64, error) {
	var targets []int64
	for id, h := range t.s.habits {
		if h.HabitHistoryID == historyID && h.Title == oldTitle {
			if t.exists(historyID, h.Date, newTitle, id) {
				return 0, ErrDuplicate
			}
			targets = append(targets, id)
		}
	}
	now := t.s.now()
	for _, id := range targets {
		h := t.s.habits[id]
		h.Title = newTitle
		h.UpdatedAt = now
		t.s.habits[id] = h
	}
	return int64(len(targets)), nil
}

func (t *memoryHabitTx) DeleteFrom(historyID int64, title string, from time.Time) (int64, error) {
	var n int64
	for id, h := range t.s.habits {
		if h.HabitHistoryID == historyID && h.Title == title && !h.Date.Before(from) {
			delete(t.s.habits, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryHabitTx) SaveDayFlags(h domain.HabitHistory) error {
	existing, ok := t.s.histories[h.ID]
	if !ok {
		return ErrNotFound
	}
	existing.MonDone, existing.TueDone, existing.WedDone = h.MonDone, h.TueDone, h.WedDone
	existing.ThuDone, existing.FriDone, existing.SatDone, existing.SunDone = h.ThuDone, h.FriDone, h.SatDone, h.SunDone
	existing.UpdatedAt = t.s.now()
	t.s.histories[h.ID] = existing
	return nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ UserStore = (*MemoryStore)(nil)
)
