package posts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/snapfeed/backend/internal/gateway"
)

// callLog records gateway calls in order so compensation sequencing can be
// asserted.
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

func (l *callLog) has(call string) bool {
	for _, c := range l.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (l *callLog) indexOf(call string) int {
	for i, c := range l.calls {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeDocumentStore struct {
	log  *callLog
	now  time.Time
	seq  int
	docs map[string]map[string]gateway.Document

	createErr error
	updateErr error
	deleteErr error
	listErr   error

	listPages map[string]gateway.Page
}

func newFakeDocumentStore(log *callLog, now time.Time) *fakeDocumentStore {
	return &fakeDocumentStore{
		log:  log,
		now:  now,
		docs: make(map[string]map[string]gateway.Document),
	}
}

func (s *fakeDocumentStore) collection(name string) map[string]gateway.Document {
	if s.docs[name] == nil {
		s.docs[name] = make(map[string]gateway.Document)
	}
	return s.docs[name]
}

func (s *fakeDocumentStore) Create(_ context.Context, collection string, doc gateway.Document) (gateway.Document, error) {
	s.log.add("createDocument:" + collection)
	if s.createErr != nil {
		return gateway.Document{}, s.createErr
	}

	if doc.ID == "" {
		s.seq++
		doc.ID = fmt.Sprintf("doc-%d", s.seq)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	s.collection(collection)[doc.ID] = doc
	return doc, nil
}

func (s *fakeDocumentStore) Get(_ context.Context, collection, id string) (gateway.Document, error) {
	s.log.add("getDocument:" + collection + ":" + id)
	doc, ok := s.collection(collection)[id]
	if !ok {
		return gateway.Document{}, gateway.ErrNotFound
	}
	return doc, nil
}

func (s *fakeDocumentStore) Update(_ context.Context, collection, id string, data json.RawMessage) (gateway.Document, error) {
	s.log.add("updateDocument:" + collection + ":" + id)
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
	if existing == nil {
		existing = make(map[string]json.RawMessage)
	}
	for k, v := range patch {
		existing[k] = v
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return gateway.Document{}, err
	}
	doc.Data = merged
	doc.UpdatedAt = s.now
	s.collection(collection)[id] = doc
	return doc, nil
}

func (s *fakeDocumentStore) Delete(_ context.Context, collection, id string) error {
	s.log.add("deleteDocument:" + collection + ":" + id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.collection(collection)[id]; !ok {
		return fmt.Errorf("document %s/%s: %w: %w", collection, id, gateway.ErrPersistence, gateway.ErrNotFound)
	}
	delete(s.collection(collection), id)
	return nil
}

func (s *fakeDocumentStore) List(_ context.Context, collection string, opts gateway.ListOptions) (gateway.Page, error) {
	s.log.add("listDocuments:" + collection)
	if s.listErr != nil {
		return gateway.Page{}, s.listErr
	}
	if s.listPages != nil {
		return s.listPages[collection], nil
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
		value, present := payload[f.Field]
		switch f.Op {
		case gateway.OpEqual:
			s, _ := value.(string)
			if !present || s != f.Value {
				return false
			}
		case gateway.OpAfter:
			s, _ := value.(string)
			if !present {
				return false
			}
			stored, err := time.Parse(time.RFC3339Nano, s)
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
		case gateway.OpSearch:
			s, _ := value.(string)
			if !present || !strings.Contains(strings.ToLower(s), strings.ToLower(f.Value)) {
				return false
			}
		case gateway.OpMissing:
			if present && value != nil {
				return false
			}
		case gateway.OpContains:
			items, _ := value.([]any)
			found := false
			for _, item := range items {
				if s, ok := item.(string); ok && s == f.Value {
					found = true
					break
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
	log *callLog
	seq int

	uploadErr  error
	previewErr error
	deleteErr  error

	uploaded []string
	deleted  []string
}

func newFakeFileStore(log *callLog) *fakeFileStore {
	return &fakeFileStore{log: log}
}

func (s *fakeFileStore) Upload(_ context.Context, filename string, r io.Reader) (gateway.FileRef, error) {
	s.log.add("uploadFile:" + filename)
	if s.uploadErr != nil {
		return gateway.FileRef{}, s.uploadErr
	}
	s.seq++
	id := fmt.Sprintf("file-%d", s.seq)
	s.uploaded = append(s.uploaded, id)
	return gateway.FileRef{ID: id}, nil
}

func (s *fakeFileStore) PreviewURL(fileID string, _ gateway.PreviewOptions) (string, error) {
	s.log.add("getFilePreview:" + fileID)
	if s.previewErr != nil {
		return "", s.previewErr
	}
	return "https://cdn.test/preview/" + fileID, nil
}

func (s *fakeFileStore) Delete(_ context.Context, fileID string) error {
	s.log.add("deleteFile:" + fileID)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, fileID)
	return nil
}

var (
	_ gateway.DocumentStore = (*fakeDocumentStore)(nil)
	_ gateway.FileStore     = (*fakeFileStore)(nil)
)
