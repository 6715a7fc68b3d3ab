package stories

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/snapfeed/backend/internal/gateway"
)

type fakeDocumentStore struct {
	calls     []string
	seq       int
	docs      map[string]map[string]gateway.Document
	createErr error
	updateErr error
	deleteErr error
	listErr   error
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]map[string]gateway.Document)}
}

func (s *fakeDocumentStore) collection(name string) map[string]gateway.Document {
	if s.docs[name] == nil {
		s.docs[name] = make(map[string]gateway.Document)
	}
	return s.docs[name]
}

func (s *fakeDocumentStore) seed(collection, id string, createdAt time.Time, payload string) {
	s.collection(collection)[id] = gateway.Document{
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Data:      json.RawMessage(payload),
	}
}

func (s *fakeDocumentStore) Create(_ context.Context, collection string, doc gateway.Document) (gateway.Document, error) {
	s.calls = append(s.calls, "createDocument:"+collection)
	if s.createErr != nil {
		return gateway.Document{}, s.createErr
	}
	s.seq++
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", s.seq)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	s.collection(collection)[doc.ID] = doc
	return doc, nil
}

func (s *fakeDocumentStore) Get(_ context.Context, collection, id string) (gateway.Document, error) {
	s.calls = append(s.calls, "getDocument:"+collection+":"+id)
	doc, ok := s.collection(collection)[id]
	if !ok {
		return gateway.Document{}, gateway.ErrNotFound
	}
	return doc, nil
}

func (s *fakeDocumentStore) Update(_ context.Context, collection, id string, data json.RawMessage) (gateway.Document, error) {
	s.calls = append(s.calls, "updateDocument:"+collection+":"+id)
	if s.updateErr != nil {
		return gateway.Document{}, s.updateErr
	}
	doc, ok := s.collection(collection)[id]
	if !ok {
		return gateway.Document{}, fmt.Errorf("document %s/%s: %w: %w", collection, id, gateway.ErrPersistence, gateway.ErrNotFound)
	}

	var existing, patch map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &existing); err != nil {
		return gateway.Document{}, err
	}
	if err := json.Unmarshal(data, &patch); err != nil {
		return gateway.Document{}, err
	}
	for k, v := range patch {
		existing[k] = v
	}
	merged, err := json.Marshal(existing)
	if err != nil {
		return gateway.Document{}, err
	}
	doc.Data = merged
	doc.UpdatedAt = time.Now().UTC()
	s.collection(collection)[id] = doc
	return doc, nil
}

func (s *fakeDocumentStore) Delete(_ context.Context, collection, id string) error {
	s.calls = append(s.calls, "deleteDocument:"+collection+":"+id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.collection(collection), id)
	return nil
}

func (s *fakeDocumentStore) List(_ context.Context, collection string, opts gateway.ListOptions) (gateway.Page, error) {
	s.calls = append(s.calls, "listDocuments:"+collection)
	if s.listErr != nil {
		return gateway.Page{}, s.listErr
	}

	var page gateway.Page
	for _, doc := range s.collection(collection) {
		if matchesFilters(doc, opts.Filters) {
			page.Documents = append(page.Documents, doc)
		}
	}
	if opts.Limit > 0 && len(page.Documents) > opts.Limit {
		page.Documents = page.Documents[:opts.Limit]
	}
	return page, nil
}

func matchesFilters(doc gateway.Document, filters []gateway.Filter) bool {
	var payload map[string]any
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		return false
	}
	for _, f := range filters {
		switch f.Op {
		case gateway.OpEqual:
			v, _ := payload[f.Field].(string)
			if v != f.Value {
				return false
			}
		case gateway.OpAfter:
			v, _ := payload[f.Field].(string)
			stored, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return false
			}
			cutoff, err := time.Parse(time.RFC3339Nano, f.Value)
			if err != nil {
				return false
			}
			if !stored.After(cutoff) {
				return false
			}
		case gateway.OpMissing:
			if _, ok := payload[f.Field]; ok {
				return false
			}
		case gateway.OpSearch:
			v, _ := payload[f.Field].(string)
			if !strings.Contains(strings.ToLower(v), strings.ToLower(f.Value)) {
				return false
			}
		case gateway.OpContains:
			items, _ := payload[f.Field].([]any)
			found := false
			for _, item := range items {
				if s, _ := item.(string); s == f.Value {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

type fakeFileStore struct {
	calls      []string
	seq        int
	uploadErr  error
	previewErr error
	deleteErr  error
}

func (s *fakeFileStore) Upload(_ context.Context, _ string, _ io.Reader) (gateway.FileRef, error) {
	if s.uploadErr != nil {
		return gateway.FileRef{}, s.uploadErr
	}
	s.seq++
	id := fmt.Sprintf("file-%d", s.seq)
	s.calls = append(s.calls, "uploadFile:"+id)
	return gateway.FileRef{ID: id}, nil
}

func (s *fakeFileStore) PreviewURL(fileID string, _ gateway.PreviewOptions) (string, error) {
	s.calls = append(s.calls, "getFilePreview:"+fileID)
	if s.previewErr != nil {
		return "", s.previewErr
	}
	return "https://cdn.test/preview/" + fileID, nil
}

func (s *fakeFileStore) Delete(_ context.Context, fileID string) error {
	s.calls = append(s.calls, "deleteFile:"+fileID)
	return s.deleteErr
}

// fakeSubscriber hands delivered callbacks to the test and records cancels.
type fakeSubscriber struct {
	mu        sync.Mutex
	fn        func(gateway.Event)
	cancelled bool
	err       error
}

func (s *fakeSubscriber) Subscribe(_ context.Context, _ string, fn func(gateway.Event)) (gateway.CancelFunc, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.cancelled = true
		s.fn = nil
		s.mu.Unlock()
	}, nil
}

func (s *fakeSubscriber) emit(ev gateway.Event) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

var (
	_ gateway.DocumentStore = (*fakeDocumentStore)(nil)
	_ gateway.FileStore     = (*fakeFileStore)(nil)
	_ gateway.Subscriber    = (*fakeSubscriber)(nil)
)
