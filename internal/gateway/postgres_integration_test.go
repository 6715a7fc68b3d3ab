package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresDocumentStore_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresDocumentStore(testPool, nil)

	created := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	doc, err := store.Create(ctx, "posts", Document{
		CreatedAt: created,
		Data:      json.RawMessage(`{"creator":"user-1","caption":"hello","imageUrl":"u","imageId":"f1","tags":["a"],"likes":[]}`),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected generated id")
	}
	if !doc.CreatedAt.Equal(created) {
		t.Fatalf("caller-supplied creation time must stick, got %v", doc.CreatedAt)
	}

	fetched, err := store.Get(ctx, "posts", doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !timesClose(fetched.CreatedAt, created, time.Millisecond) {
		t.Fatalf("created at %v want %v", fetched.CreatedAt, created)
	}

	// A partial update merges attribute by attribute and leaves the rest.
	updated, err := store.Update(ctx, "posts", doc.ID, json.RawMessage(`{"caption":"edited","likes":["user-2"]}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(updated.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["caption"] != "edited" {
		t.Fatalf("caption %v", payload["caption"])
	}
	if payload["creator"] != "user-1" || payload["imageId"] != "f1" {
		t.Fatalf("untouched fields must survive the merge: %v", payload)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("update must stamp updated_at, got %v", updated.UpdatedAt)
	}

	if err := store.Delete(ctx, "posts", doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "posts", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(ctx, "posts", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestPostgresDocumentStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresDocumentStore(testPool, nil)

	if _, err := store.Create(ctx, "posts", Document{ID: "post-dup"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "posts", Document{ID: "post-dup"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPostgresDocumentStore_RejectsBadCollection(t *testing.T) {
	store := NewPostgresDocumentStore(testPool, nil)

	if _, err := store.Get(context.Background(), "posts; DROP TABLE posts", "id"); err == nil {
		t.Fatal("expected invalid collection error")
	}
}

func TestPostgresDocumentStore_CursorPagination(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresDocumentStore(testPool, nil)

	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 12; i++ {
		stamp := base.Add(time.Duration(i) * time.Minute)
		_, err := store.Create(ctx, "posts", Document{
			ID:        fmt.Sprintf("post-%02d", i),
			CreatedAt: stamp,
			Data:      json.RawMessage(fmt.Sprintf(`{"creator":"user-1","caption":"post %d"}`, i)),
		})
		if err != nil {
			t.Fatalf("seed post %d: %v", i, err)
		}
	}

	first, err := store.List(ctx, "posts", ListOptions{Limit: 9})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Documents) != 9 {
		t.Fatalf("first page size %d want 9", len(first.Documents))
	}
	if first.Documents[0].ID != "post-12" || first.Documents[8].ID != "post-04" {
		t.Fatalf("first page bounds %s..%s", first.Documents[0].ID, first.Documents[8].ID)
	}

	cursor := first.Documents[len(first.Documents)-1].ID
	second, err := store.List(ctx, "posts", ListOptions{Limit: 9, Cursor: cursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Documents) != 3 {
		t.Fatalf("second page size %d want 3", len(second.Documents))
	}
	for _, doc := range second.Documents {
		if doc.UpdatedAt.After(first.Documents[8].UpdatedAt) {
			t.Fatalf("page two must resume strictly after the cursor, got %s", doc.ID)
		}
	}
	if second.Documents[0].ID != "post-03" || second.Documents[2].ID != "post-01" {
		t.Fatalf("second page bounds %s..%s", second.Documents[0].ID, second.Documents[2].ID)
	}
}

func TestPostgresDocumentStore_Filters(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresDocumentStore(testPool, nil)

	seed := func(id, payload string) {
		t.Helper()
		if _, err := store.Create(ctx, "posts", Document{ID: id, Data: json.RawMessage(payload)}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("post-a", `{"creator":"user-1","caption":"Sunset over Lisbon","likes":["user-2"],"expiresAt":"2026-02-02T00:00:00Z"}`)
	seed("post-b", `{"creator":"user-2","caption":"coffee time","likes":[]}`)
	seed("post-c", `{"creator":"user-1","caption":"another sunset","likes":["user-2","user-3"],"expiresAt":"2026-01-01T00:00:00Z"}`)
	seed("post-d", `{"creator":"user-3","caption":"fading fast","likes":[],"expiresAt":"2026-01-15T00:00:00Z"}`)

	ids := func(page Page) []string {
		var out []string
		for _, doc := range page.Documents {
			out = append(out, doc.ID)
		}
		sort.Strings(out)
		return out
	}

	byCreator, err := store.List(ctx, "posts", ListOptions{Filters: []Filter{Equal("creator", "user-1")}})
	if err != nil {
		t.Fatalf("equal filter: %v", err)
	}
	if got := ids(byCreator); len(got) != 2 || got[0] != "post-a" || got[1] != "post-c" {
		t.Fatalf("equal filter got %v", got)
	}

	search, err := store.List(ctx, "posts", ListOptions{Filters: []Filter{Search("caption", "SUNSET")}})
	if err != nil {
		t.Fatalf("search filter: %v", err)
	}
	if got := ids(search); len(got) != 2 {
		t.Fatalf("case-insensitive search got %v", got)
	}

	liked, err := store.List(ctx, "posts", ListOptions{Filters: []Filter{Contains("likes", "user-3")}})
	if err != nil {
		t.Fatalf("contains filter: %v", err)
	}
	if got := ids(liked); len(got) != 1 || got[0] != "post-c" {
		t.Fatalf("contains filter got %v", got)
	}

	unstamped, err := store.List(ctx, "posts", ListOptions{Filters: []Filter{Missing("expiresAt")}})
	if err != nil {
		t.Fatalf("missing filter: %v", err)
	}
	if got := ids(unstamped); len(got) != 1 || got[0] != "post-b" {
		t.Fatalf("missing filter got %v", got)
	}

	active, err := store.List(ctx, "posts", ListOptions{Filters: []Filter{After("expiresAt", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))}})
	if err != nil {
		t.Fatalf("after filter: %v", err)
	}
	if got := ids(active); len(got) != 2 || got[0] != "post-a" || got[1] != "post-d" {
		t.Fatalf("after filter got %v", got)
	}

	// A whole-second expiry must sort below a later fractional cutoff even
	// though "...00Z" > "...00.5Z" as text.
	active, err = store.List(ctx, "posts", ListOptions{Filters: []Filter{After("expiresAt", time.Date(2026, 1, 15, 0, 0, 0, 500000000, time.UTC))}})
	if err != nil {
		t.Fatalf("after filter: %v", err)
	}
	if got := ids(active); len(got) != 1 || got[0] != "post-a" {
		t.Fatalf("fractional-second cutoff got %v", got)
	}
}

func TestPostgresAccountStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresAccountStore(testPool)

	account, err := store.CreateAccount(ctx, "Ada@Example.com", "password123", "Ada")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if account.Email != "ada@example.com" {
		t.Fatalf("expected normalized email got %q", account.Email)
	}

	if _, err := store.CreateAccount(ctx, "ada@example.com", "other-password", "Ada II"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}

	if _, err := store.CreateSession(ctx, "ada@example.com", "wrong-password"); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth failure for bad password, got %v", err)
	}

	session, err := store.CreateSession(ctx, "ada@example.com", "password123")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Token == "" || session.AccountID != account.ID {
		t.Fatalf("unexpected session %+v", session)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Fatalf("session already expired: %v", session.ExpiresAt)
	}

	resolved, err := store.GetAccount(ctx, session.Token)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if resolved.ID != account.ID {
		t.Fatalf("resolved %q want %q", resolved.ID, account.ID)
	}

	if err := store.DeleteSession(ctx, session.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.GetAccount(ctx, session.Token); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth failure after sign-out, got %v", err)
	}
	if err := store.DeleteSession(ctx, session.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE sessions, accounts, users, posts, saves, stories CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
