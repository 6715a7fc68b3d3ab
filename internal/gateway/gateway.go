package gateway

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Document is the stored envelope for a collection record: an identifier,
// implicit timestamps, and an opaque JSON payload. Domain packages decode
// Data into their typed records and validate it at this boundary.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      json.RawMessage
}

// Page is one page of a document listing.
type Page struct {
	Documents []Document
}

// Order selects the envelope timestamp a listing is sorted by. Listings are
// always descending (newest first).
type Order int

const (
	// OrderUpdatedDesc sorts by most recently updated first. This is the
	// default ordering.
	OrderUpdatedDesc Order = iota
	// OrderCreatedDesc sorts by most recently created first.
	OrderCreatedDesc
)

// Filter restricts a listing to documents whose payload matches a predicate.
type Filter struct {
	Field string
	Op    FilterOp
	Value string
}

// FilterOp enumerates the predicates the document store supports.
type FilterOp int

const (
	// OpEqual matches payload field == value.
	OpEqual FilterOp = iota
	// OpAfter matches documents whose payload field, an RFC 3339
	// timestamp, is strictly after the operand. The comparison is on the
	// parsed instants, not on the encoded text: RFC 3339 trims trailing
	// fractional zeros, so text ordering breaks across differing
	// fractional widths ("...59Z" sorts above "...59.5Z").
	OpAfter
	// OpSearch matches documents whose payload field contains the value as
	// a substring. Relevance ordering is whatever the store provides.
	OpSearch
	// OpMissing matches documents whose payload lacks the field entirely.
	// Value is ignored.
	OpMissing
	// OpContains matches documents whose payload field, a JSON string
	// array, contains the value as an element.
	OpContains
)

// Equal builds an equality filter.
func Equal(field, value string) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// After builds a timestamp filter matching documents whose field holds an
// instant strictly after t.
func After(field string, t time.Time) Filter {
	return Filter{Field: field, Op: OpAfter, Value: t.UTC().Format(time.RFC3339Nano)}
}

// Search builds a substring-match filter.
func Search(field, value string) Filter {
	return Filter{Field: field, Op: OpSearch, Value: value}
}

// Missing builds a filter matching documents without the field.
func Missing(field string) Filter {
	return Filter{Field: field, Op: OpMissing}
}

// Contains builds an array-membership filter.
func Contains(field, value string) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}

// ListOptions shapes a document listing. Cursor is the id of the last
// document of the previous page; an empty cursor requests the first page.
// A Limit of zero means no limit.
type ListOptions struct {
	Filters []Filter
	Order   Order
	Limit   int
	Cursor  string
}

// DocumentStore is the document half of the backing-service contract.
// Create fills in ID, CreatedAt, and UpdatedAt when the caller leaves them
// zero; callers that need timestamps aligned with payload fields may supply
// them. Update merges the provided payload into the existing one attribute
// by attribute and stamps UpdatedAt.
type DocumentStore interface {
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, data json.RawMessage) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string, opts ListOptions) (Page, error)
}

// FileRef identifies an uploaded object.
type FileRef struct {
	ID string
}

// PreviewOptions control the derived preview rendition of a stored file.
type PreviewOptions struct {
	Width   int
	Height  int
	Gravity string
	Quality int
}

// FileStore is the object-storage half of the backing-service contract.
type FileStore interface {
	Upload(ctx context.Context, filename string, r io.Reader) (FileRef, error)
	PreviewURL(fileID string, opts PreviewOptions) (string, error)
	Delete(ctx context.Context, fileID string) error
}

// AccountStore is the identity half of the backing-service contract. Every
// operation is a single attempt; failures surface immediately.
type AccountStore interface {
	CreateAccount(ctx context.Context, email, password, name string) (Account, error)
	CreateSession(ctx context.Context, email, password string) (Session, error)
	GetAccount(ctx context.Context, token string) (Account, error)
	DeleteSession(ctx context.Context, token string) error
}

// Account mirrors models.Account at the gateway boundary.
type Account struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Session mirrors models.Session at the gateway boundary.
type Session struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

// EventKind distinguishes realtime change-feed events.
type EventKind string

const (
	// EventCreated is published after a document insert.
	EventCreated EventKind = "created"
	// EventDeleted is published after a document delete.
	EventDeleted EventKind = "deleted"
)

// Event is one change-feed notification. Delivery is at least once per
// connected subscriber and unordered across distinct documents; consumers
// must deduplicate by Document.ID.
type Event struct {
	Kind       EventKind
	Collection string
	Document   Document
}

// CancelFunc detaches a subscription. It blocks until the listener has
// stopped; no callbacks are invoked after it returns.
type CancelFunc func()

// Subscriber delivers change-feed events for one collection.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string, fn func(Event)) (CancelFunc, error)
}
