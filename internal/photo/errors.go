package photo

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without matching strings.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindDerivative  Kind = "derivative"
	KindObjectStore Kind = "object_store"
	KindMetadata    Kind = "metadata"
	KindCleanup     Kind = "cleanup"
	KindPersistence Kind = "persistence"
	KindCanceled    Kind = "canceled"
)

// Operations reported in Error.Op.
const (
	OpIngest = "ingestion"
	OpList   = "listing"
)

// ErrIngestionFailed matches every error returned by Service.Ingest.
var ErrIngestionFailed = errors.New("ingestion failed")

// Error is the tagged error returned by the service.
type Error struct {
	Op   string
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ingestion errors as ErrIngestionFailed.
func (e *Error) Is(target error) bool {
	return target == ErrIngestionFailed && e.Op == OpIngest
}

// KindOf returns the Kind of err, or "" when err is nil or untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
