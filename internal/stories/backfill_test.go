package stories

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/snapfeed/backend/internal/gateway"
)

func TestBackfillStampsMissingExpiry(t *testing.T) {
	docs := newFakeDocumentStore()
	createdPost := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	createdStory := time.Date(2026, time.January, 11, 20, 15, 0, 0, time.UTC)

	docs.seed("posts", "post-old", createdPost, `{"creator":"u1","caption":"c","imageUrl":"u","imageId":"f1","tags":[]}`)
	docs.seed("posts", "post-new", createdPost, `{"creator":"u1","caption":"c","imageUrl":"u","imageId":"f2","tags":[],"expiresAt":"2026-01-11T08:00:00Z"}`)
	docs.seed("stories", "story-old", createdStory, `{"creator":"u2","imageUrl":"u","imageId":"f3"}`)

	count, err := NewBackfiller(docs, testCollections).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 updates got %d", count)
	}

	assertExpiry := func(collection, id string, want time.Time) {
		t.Helper()
		doc := docs.collection(collection)[id]
		var payload struct {
			ExpiresAt time.Time `json:"expiresAt"`
		}
		if err := json.Unmarshal(doc.Data, &payload); err != nil {
			t.Fatalf("decode %s/%s: %v", collection, id, err)
		}
		if !payload.ExpiresAt.Equal(want) {
			t.Fatalf("%s/%s expires at %v want %v", collection, id, payload.ExpiresAt, want)
		}
	}

	assertExpiry("posts", "post-old", createdPost.Add(24*time.Hour))
	assertExpiry("stories", "story-old", createdStory.Add(24*time.Hour))
	// Already-stamped documents keep their original value.
	assertExpiry("posts", "post-new", time.Date(2026, time.January, 11, 8, 0, 0, 0, time.UTC))
}

func TestBackfillSecondRunIsNoOp(t *testing.T) {
	docs := newFakeDocumentStore()
	docs.seed("posts", "post-old", time.Now().UTC().Add(-48*time.Hour), `{"creator":"u1","caption":"c","imageUrl":"u","imageId":"f1"}`)

	backfiller := NewBackfiller(docs, testCollections)
	if _, err := backfiller.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	count, err := backfiller.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if count != 0 {
		t.Fatalf("second run must touch nothing, updated %d", count)
	}
}

func TestBackfillStopsOnUpdateFailure(t *testing.T) {
	docs := newFakeDocumentStore()
	docs.seed("posts", "post-old", time.Now().UTC(), `{"creator":"u1","imageUrl":"u","imageId":"f1"}`)
	docs.updateErr = fmt.Errorf("update: %w", gateway.ErrPersistence)

	count, err := NewBackfiller(docs, testCollections).Run(context.Background())
	if err == nil {
		t.Fatal("expected failure to surface")
	}
	if count != 0 {
		t.Fatalf("nothing committed before the failure, count %d", count)
	}
}
