package stories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/snapfeed/backend/internal/config"
	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/logging"
	"github.com/snapfeed/backend/internal/models"
)

// backfillBatch is how many documents one backfill round fetches.
const backfillBatch = 100

// Backfiller stamps an expiry on legacy posts and stories that predate the
// expiresAt field. Each document gets CreatedAt plus the standard window, so
// old content ages out on the same schedule as new content.
type Backfiller struct {
	docs        gateway.DocumentStore
	collections []string
}

// NewBackfiller covers the posts and stories collections.
func NewBackfiller(docs gateway.DocumentStore, collections config.Collections) *Backfiller {
	return &Backfiller{
		docs:        docs,
		collections: []string{collections.Posts, collections.Stories},
	}
}

// Run stamps every document still missing an expiry and reports how many it
// updated. Documents that already carry the field are never touched, so a
// second run is a no-op. The first failed update aborts the run; the count
// reflects what was committed before the failure.
func (b *Backfiller) Run(ctx context.Context) (int, error) {
	logger := logging.FromContext(ctx)
	total := 0

	for _, collection := range b.collections {
		for {
			page, err := b.docs.List(ctx, collection, gateway.ListOptions{
				Filters: []gateway.Filter{gateway.Missing("expiresAt")},
				Limit:   backfillBatch,
			})
			if err != nil {
				return total, fmt.Errorf("list %s without expiry: %w", collection, err)
			}
			if len(page.Documents) == 0 {
				break
			}

			for _, doc := range page.Documents {
				expiresAt := models.ExpiresFrom(doc.CreatedAt)
				patch, err := json.Marshal(map[string]time.Time{"expiresAt": expiresAt})
				if err != nil {
					return total, fmt.Errorf("encode expiry patch: %w", err)
				}
				if _, err := b.docs.Update(ctx, collection, doc.ID, patch); err != nil {
					return total, fmt.Errorf("backfill %s/%s: %w", collection, doc.ID, err)
				}
				total++
			}

			logger.Info("backfilled expiry batch", "collection", collection, "count", len(page.Documents))

			// Updated documents stop matching the filter, so the next
			// round fetches a fresh first page.
			if len(page.Documents) < backfillBatch {
				break
			}
		}
	}

	return total, nil
}
