package memory

import (
	"context"
	"testing"
	"time"

	"quiz-editor/internal/app"
	"quiz-editor/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(func(string) *app.Editor {
		return app.NewEditor(NewQuizStore(), nil, nil)
	}, time.Minute)

	editor := store.GetOrCreate("session-1")
	if editor == nil {
		t.Fatalf("expected editor")
	}
	if again := store.GetOrCreate("session-1"); again != editor {
		t.Fatalf("expected the same editor for the same session")
	}

	store.DeleteIfIdle("session-1")
	if _, ok := store.Get("session-1"); !ok {
		t.Fatalf("expected session kept while another connection holds it")
	}
	store.DeleteIfIdle("session-1")
	if _, ok := store.Get("session-1"); ok {
		t.Fatalf("expected idle session removed")
	}
}

func TestSessionStoreKeepsOpenDrafts(t *testing.T) {
	store, editor := newDraftingSession(t, "session-1")

	store.DeleteIfIdle("session-1")
	if got, ok := store.Get("session-1"); !ok || got != editor {
		t.Fatalf("expected session with a draft to survive")
	}
}

func TestSessionStoreReapsDetachedDrafts(t *testing.T) {
	store, _ := newDraftingSession(t, "session-1")
	now := time.Unix(1_700_000_000, 0)
	store.clock = func() time.Time { return now }

	store.DeleteIfIdle("session-1")
	now = now.Add(30 * time.Second)
	if n := store.Reap(context.Background()); n != 0 {
		t.Fatalf("expected nothing reaped inside the ttl, got %d", n)
	}

	now = now.Add(time.Minute)
	if n := store.Reap(context.Background()); n != 1 {
		t.Fatalf("expected one session reaped, got %d", n)
	}
	if _, ok := store.Get("session-1"); ok {
		t.Fatalf("expected detached session dropped")
	}
}

func TestSessionStoreReattachCancelsReap(t *testing.T) {
	store, editor := newDraftingSession(t, "session-1")
	now := time.Unix(1_700_000_000, 0)
	store.clock = func() time.Time { return now }

	store.DeleteIfIdle("session-1")
	if again := store.GetOrCreate("session-1"); again != editor {
		t.Fatalf("expected resumed session to keep its editor")
	}
	now = now.Add(time.Hour)
	if n := store.Reap(context.Background()); n != 0 {
		t.Fatalf("expected attached session kept, reaped %d", n)
	}
}

func newDraftingSession(t *testing.T, id string) (*SessionStore, *app.Editor) {
	t.Helper()
	quizzes := NewQuizStore(sampleQuiz())
	store := NewSessionStore(func(string) *app.Editor {
		return app.NewEditor(quizzes, nil, nil)
	}, time.Minute)

	editor := store.GetOrCreate(id)
	if err := editor.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := editor.BeginEdit(domain.DurableID(1)); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	return store, editor
}
