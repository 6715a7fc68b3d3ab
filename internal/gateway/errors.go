package gateway

import "errors"

var (
	// ErrNotFound indicates the requested document, account, or session
	// does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness
	// constraint.
	ErrConflict = errors.New("record conflict")
	// ErrPersistence indicates a document create, update, or delete failed.
	ErrPersistence = errors.New("persistence failed")
	// ErrUpload indicates the file store rejected an upload or returned no
	// usable reference.
	ErrUpload = errors.New("upload failed")
	// ErrAuth indicates an identity or session operation failed.
	ErrAuth = errors.New("authentication failed")
)
