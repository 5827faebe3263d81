package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/domain"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
)

const testPassword = "forest-pass"

// Wednesday 2025-03-12 12:00 KST.
var baseTime = time.Date(2025, 3, 12, 3, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fixture struct {
	app   *App
	store *store.MemoryStore
	clock *testClock
	study domain.Study
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{t: baseTime}
	st := store.NewMemoryStore()
	st.SetClock(clock.Now)
	a, err := New(Config{Store: st, Now: clock.Now})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	f := &fixture{app: a, store: st, clock: clock}
	f.study = f.createStudy(t, "forest", testPassword)
	return f
}

// createStudy stores a study with a cheap bcrypt digest.
func (f *fixture) createStudy(t *testing.T, name, password string) domain.Study {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	s, err := f.store.CreateStudy(context.Background(), domain.Study{
		Nick:         "lead",
		Name:         name,
		Content:      name + " study group",
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create study: %v", err)
	}
	return s
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "12", want: 12},
		{raw: " 7 ", want: 7},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseID(tc.raw, "studyId")
		if tc.wantErr {
			assertKind(t, err, KindBadRequest)
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseID(%q) = (%d, %v), want %d", tc.raw, got, err, tc.want)
		}
	}
}

func TestAuthenticateStudy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	noHash, err := f.store.CreateStudy(ctx, domain.Study{Name: "open", Nick: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	plain, err := f.store.CreateStudy(ctx, domain.Study{Name: "legacy", Nick: "x", PasswordHash: "plaintext"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name     string
		studyID  int64
		password string
		want     Kind
		ok       bool
	}{
		{name: "correct password", studyID: f.study.ID, password: testPassword, ok: true},
		{name: "wrong password", studyID: f.study.ID, password: "nope", want: KindUnauthorized},
		{name: "empty password", studyID: f.study.ID, want: KindUnauthorized},
		{name: "missing study", studyID: 9999, password: testPassword, want: KindNotFound},
		{name: "study without digest", studyID: noHash.ID, password: "anything", want: KindUnauthorized},
		{name: "plaintext digest never matches", studyID: plain.ID, password: "plaintext", want: KindUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := f.app.AuthenticateStudy(ctx, tc.studyID, tc.password)
			if tc.ok {
				if err != nil || s.ID != tc.studyID {
					t.Fatalf("authenticate = (%v, %v)", s.ID, err)
				}
				return
			}
			assertKind(t, err, tc.want)
		})
	}
}
