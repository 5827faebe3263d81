package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/auth"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key + "?sig=1", nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func ptr[T any](v T) *T { return &v }

func TestCreateStudy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := CreateStudyInput{
		Nick:          " lead ",
		Name:          "Go readers",
		Content:       "weekly chapters",
		Password:      "secret",
		CheckPassword: "secret",
	}

	s, err := f.app.CreateStudy(ctx, valid)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == 0 || s.Nick != "lead" || !s.IsActive {
		t.Fatalf("study = %+v", s)
	}
	if s.PasswordHash == "secret" || !auth.CheckPassword("secret", s.PasswordHash) {
		t.Fatalf("password must be stored as a digest")
	}

	tests := []struct {
		name   string
		mutate func(*CreateStudyInput)
	}{
		{name: "missing name", mutate: func(in *CreateStudyInput) { in.Name = "  " }},
		{name: "long nick", mutate: func(in *CreateStudyInput) { in.Nick = strings.Repeat("n", 31) }},
		{name: "long content", mutate: func(in *CreateStudyInput) { in.Content = strings.Repeat("c", 2001) }},
		{name: "missing password", mutate: func(in *CreateStudyInput) { in.Password, in.CheckPassword = "", "" }},
		{name: "mismatched confirmation", mutate: func(in *CreateStudyInput) { in.CheckPassword = "other" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := f.app.CreateStudy(ctx, in)
			assertKind(t, err, KindBadRequest)
		})
	}

	inactive := valid
	inactive.IsActive = ptr(false)
	s, err = f.app.CreateStudy(ctx, inactive)
	if err != nil || s.IsActive {
		t.Fatalf("inactive create = (%+v, %v)", s, err)
	}
}

func TestListStudies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, name := range []string{"Go club", "Rust club", "Data structures", "Go advanced"} {
		f.clock.Set(baseTime.Add(time.Duration(i+1) * time.Hour))
		s := f.createStudy(t, name, "pw")
		if _, err := f.store.AddPoint(ctx, domain.Point{StudyID: s.ID, Value: (i + 1) * 10}); err != nil {
			t.Fatalf("add point: %v", err)
		}
	}

	got, err := f.app.ListStudies(ctx, ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got.TotalCount != 5 || len(got.Studies) != 5 {
		t.Fatalf("total=%d len=%d", got.TotalCount, len(got.Studies))
	}
	if got.Studies[0].Name != "forest" || got.Studies[0].PointsSum != 0 {
		t.Fatalf("ascending points should start with forest, got %+v", got.Studies[0])
	}

	got, err = f.app.ListStudies(ctx, ListQuery{Keyword: "GO", PointOrder: "desc", Limit: 1})
	if err != nil {
		t.Fatalf("list keyword: %v", err)
	}
	if got.TotalCount != 2 || len(got.Studies) != 1 || got.Studies[0].Name != "Go advanced" {
		t.Fatalf("keyword page = %+v", got)
	}
	if got.Studies[0].Counts.Points != 1 || got.Studies[0].PointsSum != 40 {
		t.Fatalf("counts = %+v sum=%d", got.Studies[0].Counts, got.Studies[0].PointsSum)
	}

	got, err = f.app.ListStudies(ctx, ListQuery{Offset: 4, Limit: 500})
	if err != nil || len(got.Studies) != 1 {
		t.Fatalf("offset page = (%+v, %v)", got, err)
	}
	_, err = f.app.ListStudies(ctx, ListQuery{Offset: -1})
	assertKind(t, err, KindBadRequest)

	all, err := f.app.ManageStudies(ctx)
	if err != nil || len(all) != 5 || all[0].PointsSum != 40 {
		t.Fatalf("manage = (%d items, %v)", len(all), err)
	}
}

func TestGetStudyDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bulk(t, "run")
	if _, err := f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🔥"}, 3); err != nil {
		t.Fatalf("emoji: %v", err)
	}
	if _, err := f.app.AddPoint(ctx, f.study.ID, testPassword, 15); err != nil {
		t.Fatalf("point: %v", err)
	}

	d, err := f.app.GetStudyDetail(ctx, f.study.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if d.PointsSum != 15 || d.Counts.Points != 1 || d.Counts.HabitHistories != 1 || d.Counts.StudyEmojis != 1 {
		t.Fatalf("detail counts = %+v sum=%d", d.Counts, d.PointsSum)
	}
	if len(d.StudyEmojis) != 1 || d.StudyEmojis[0].Count != 3 || d.StudyEmojis[0].Emoji.Symbol != "🔥" {
		t.Fatalf("emojis = %+v", d.StudyEmojis)
	}
	if len(d.HabitHistories) != 1 || len(d.HabitHistories[0].Habits) != 1 {
		t.Fatalf("histories = %+v", d.HabitHistories)
	}

	_, err = f.app.GetStudyDetail(ctx, 999)
	assertKind(t, err, KindNotFound)
}

func TestUpdateStudy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.app.UpdateStudy(ctx, f.study.ID, testPassword, UpdateStudyInput{Name: ptr(" renamed "), IsActive: ptr(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Name != "renamed" || s.IsActive || s.Nick != "lead" {
		t.Fatalf("updated = %+v", s)
	}
	stored, _, _ := f.store.GetStudy(ctx, f.study.ID)
	if stored.Name != "renamed" || stored.PasswordHash != f.study.PasswordHash {
		t.Fatalf("stored = %+v", stored)
	}

	_, err = f.app.UpdateStudy(ctx, f.study.ID, "wrong", UpdateStudyInput{Name: ptr("x")})
	assertKind(t, err, KindUnauthorized)
	_, err = f.app.UpdateStudy(ctx, f.study.ID, testPassword, UpdateStudyInput{Name: ptr("   ")})
	assertKind(t, err, KindBadRequest)
	_, err = f.app.UpdateStudy(ctx, 999, testPassword, UpdateStudyInput{})
	assertKind(t, err, KindNotFound)
}

func TestDeleteStudyCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := habitIDByTitle(t, f.bulk(t, "run").Habits, "run")
	if _, err := f.app.UpdateFocus(ctx, f.study.ID, 5, 0); err != nil {
		t.Fatalf("focus: %v", err)
	}

	err := f.app.DeleteStudy(ctx, f.study.ID, "wrong")
	assertKind(t, err, KindUnauthorized)

	if err := f.app.DeleteStudy(ctx, f.study.ID, testPassword); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := f.store.GetStudy(ctx, f.study.ID); ok {
		t.Fatalf("study still present")
	}
	if _, ok, _ := f.store.GetHabit(ctx, id); ok {
		t.Fatalf("habit still present")
	}
	err = f.app.DeleteStudy(ctx, f.study.ID, testPassword)
	assertKind(t, err, KindNotFound)
}

func TestEmojiCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	se, err := f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "👍"}, 2)
	if err != nil || se.Count != 2 {
		t.Fatalf("increment = (%+v, %v)", se, err)
	}
	se, err = f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{ID: se.Emoji.ID}, 1)
	if err != nil || se.Count != 3 {
		t.Fatalf("increment by id = (%+v, %v)", se, err)
	}
	se, err = f.app.DecrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "👍"}, 1)
	if err != nil || se.Count != 2 {
		t.Fatalf("decrement = (%+v, %v)", se, err)
	}
	se, err = f.app.DecrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "👍"}, 5)
	if err != nil || se.Count != 0 {
		t.Fatalf("decrement to zero = (%+v, %v)", se, err)
	}
	list, err := f.store.ListStudyEmojis(ctx, f.study.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("counter row should be removed, got %+v", list)
	}

	_, err = f.app.DecrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "👍"}, 1)
	assertKind(t, err, KindNotFound)
	_, err = f.app.DecrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🦄"}, 1)
	assertKind(t, err, KindNotFound)
	_, err = f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{}, 1)
	assertKind(t, err, KindBadRequest)
	_, err = f.app.IncrementEmoji(ctx, 999, EmojiRef{Symbol: "👍"}, 1)
	assertKind(t, err, KindNotFound)
}

func TestEmojiCountMustBePositive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🔥"}, 3); err != nil {
		t.Fatalf("increment: %v", err)
	}

	cases := []struct {
		name   string
		adjust func() (domain.StudyEmoji, error)
	}{
		{"negative decrement", func() (domain.StudyEmoji, error) {
			return f.app.DecrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🔥"}, -5)
		}},
		{"zero decrement", func() (domain.StudyEmoji, error) {
			return f.app.DecrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🔥"}, 0)
		}},
		{"negative increment", func() (domain.StudyEmoji, error) {
			return f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🔥"}, -2)
		}},
		{"zero increment", func() (domain.StudyEmoji, error) {
			return f.app.IncrementEmoji(ctx, f.study.ID, EmojiRef{Symbol: "🔥"}, 0)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.adjust()
			assertKind(t, err, KindBadRequest)
		})
	}

	list, err := f.store.ListStudyEmojis(ctx, f.study.ID)
	if err != nil || len(list) != 1 || list[0].Count != 3 {
		t.Fatalf("counter changed: %+v %v", list, err)
	}
}

func TestPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	award, err := f.app.AddPoint(ctx, f.study.ID, testPassword, 10)
	if err != nil || award.PointsSum != 10 || award.Point.Value != 10 {
		t.Fatalf("award = (%+v, %v)", award, err)
	}
	if _, err := f.app.AddPoint(ctx, f.study.ID, testPassword, 5); err != nil {
		t.Fatalf("award: %v", err)
	}
	sum, err := f.app.PointsSum(ctx, f.study.ID)
	if err != nil || sum.PointsSum != 15 || sum.StudyID != f.study.ID {
		t.Fatalf("sum = (%+v, %v)", sum, err)
	}

	_, err = f.app.AddPoint(ctx, f.study.ID, testPassword, 0)
	assertKind(t, err, KindBadRequest)
	_, err = f.app.AddPoint(ctx, f.study.ID, "wrong", 5)
	assertKind(t, err, KindUnauthorized)
	_, err = f.app.PointsSum(ctx, 999)
	assertKind(t, err, KindNotFound)
}

func TestUpdateFocus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.app.UpdateFocus(ctx, f.study.ID, 10, 30)
	if err != nil {
		t.Fatalf("focus: %v", err)
	}
	if want := baseTime.Add(10*time.Minute + 30*time.Second); !first.SetTime.Equal(want) {
		t.Fatalf("setTime = %s, want %s", first.SetTime, want)
	}

	f.clock.Set(baseTime.Add(time.Hour))
	second, err := f.app.UpdateFocus(ctx, f.study.ID, 1, 0)
	if err != nil {
		t.Fatalf("focus: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same KST day must reuse row %d, got %d", first.ID, second.ID)
	}

	// 2025-03-12T15:00Z is already Thursday in KST.
	f.clock.Set(time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC))
	third, err := f.app.UpdateFocus(ctx, f.study.ID, 0, 0)
	if err != nil {
		t.Fatalf("focus: %v", err)
	}
	if third.ID == first.ID {
		t.Fatalf("next KST day must create a new row")
	}

	items, err := f.app.ListFocus(ctx, f.study.ID)
	if err != nil || len(items) != 2 {
		t.Fatalf("list focus = (%+v, %v)", items, err)
	}

	tests := []struct {
		name             string
		minutes, seconds int
	}{
		{name: "negative minutes", minutes: -1},
		{name: "seconds too large", seconds: 60},
		{name: "negative seconds", seconds: -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.app.UpdateFocus(ctx, f.study.ID, tc.minutes, tc.seconds)
			assertKind(t, err, KindBadRequest)
		})
	}
	_, err = f.app.ListFocus(ctx, 999)
	assertKind(t, err, KindNotFound)
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	objects := newMemObjects()
	a, err := New(Config{Store: f.store, Objects: objects, Now: f.clock.Now})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	payload := []byte("\x89PNG fake")

	img, err := a.UploadImage(ctx, f.study.ID, testPassword, bytes.NewReader(payload), int64(len(payload)), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !objects.has(img.Img) || !strings.HasPrefix(img.URL, "https://objects.test/studies/") {
		t.Fatalf("image = %+v", img)
	}
	detail, err := a.GetStudyDetail(ctx, f.study.ID)
	if err != nil || detail.Img != img.URL {
		t.Fatalf("detail img = %q (%v), want presigned %q", detail.Img, err, img.URL)
	}

	replaced, err := a.UploadImage(ctx, f.study.ID, testPassword, bytes.NewReader(payload), int64(len(payload)), "image/jpeg")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if objects.has(img.Img) || !objects.has(replaced.Img) {
		t.Fatalf("previous image should be removed")
	}

	_, err = a.UploadImage(ctx, f.study.ID, testPassword, bytes.NewReader(payload), int64(len(payload)), "text/plain")
	assertKind(t, err, KindBadRequest)
	_, err = a.UploadImage(ctx, f.study.ID, testPassword, bytes.NewReader(nil), 0, "image/png")
	assertKind(t, err, KindBadRequest)
	_, err = f.app.UploadImage(ctx, f.study.ID, testPassword, bytes.NewReader(payload), int64(len(payload)), "image/png")
	if !errors.Is(err, ErrImageUnavailable) {
		t.Fatalf("err = %v, want ErrImageUnavailable", err)
	}

	objects.putErr = errors.New("bucket offline")
	_, err = a.UploadImage(ctx, f.study.ID, testPassword, bytes.NewReader(payload), int64(len(payload)), "image/png")
	assertKind(t, err, KindInternal)

	if err := a.DeleteStudy(ctx, f.study.ID, testPassword); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if objects.has(replaced.Img) {
		t.Fatalf("study image should be removed with the study")
	}
}
