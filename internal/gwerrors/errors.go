// Package gwerrors defines the typed errors returned across the gateway core.
//
// Every error type carries the context a caller needs to act on it (schema,
// field, path or parameter name) and matches one of the package sentinels
// through errors.Is.
package gwerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks.
var (
	ErrParse                = errors.New("parse error")
	ErrMissingInfo          = errors.New("missing info")
	ErrReference            = errors.New("reference error")
	ErrReferenceNotFound    = errors.New("reference not found")
	ErrCyclicReference      = errors.New("cyclic reference")
	ErrUnsupportedReference = errors.New("unsupported reference")
	ErrCompile              = errors.New("compile error")
	ErrValidation           = errors.New("validation error")
	ErrDispatch             = errors.New("dispatch error")
	ErrUnknownEndpoint      = errors.New("unknown endpoint")
	ErrMissingParameter     = errors.New("missing parameter")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrPathMismatch         = errors.New("path mismatch")
	ErrAuth                 = errors.New("auth error")
	ErrMissingCredential    = errors.New("missing credential")
	ErrUnsupportedAuthType  = errors.New("unsupported auth type")
	ErrUnknownType          = errors.New("unknown type")
	ErrNotFound             = errors.New("not found")
)

// ParseError reports a structural problem in a raw document.
type ParseError struct {
	Path    string // JSON pointer of the offending node
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// MissingInfoError is returned when a document has no info object.
type MissingInfoError struct{}

func (e *MissingInfoError) Error() string { return "parse error: document has no info object" }

func (e *MissingInfoError) Is(target error) bool {
	return target == ErrMissingInfo || target == ErrParse
}

// ReferenceKind distinguishes the ways a $ref can fail.
type ReferenceKind string

const (
	ReferenceNotFound    ReferenceKind = "ReferenceNotFound"
	CyclicReference      ReferenceKind = "CyclicReference"
	UnsupportedReference ReferenceKind = "UnsupportedReference"
)

// ReferenceError reports a $ref that cannot be resolved.
type ReferenceError struct {
	Kind    ReferenceKind
	Ref     string
	Segment string // first missing segment for ReferenceNotFound
	Chain   []string
}

func (e *ReferenceError) Error() string {
	switch e.Kind {
	case ReferenceNotFound:
		return fmt.Sprintf("reference %q not found: missing segment %q", e.Ref, e.Segment)
	case CyclicReference:
		chain := make([]string, 0, len(e.Chain)+1)
		chain = append(chain, e.Chain...)
		return fmt.Sprintf("cyclic reference %q: %s", e.Ref, strings.Join(append(chain, e.Ref), " -> "))
	default:
		return fmt.Sprintf("unsupported reference %q: only local fragments (#/...) are allowed", e.Ref)
	}
}

func (e *ReferenceError) Is(target error) bool {
	switch target {
	case ErrReference:
		return true
	case ErrReferenceNotFound:
		return e.Kind == ReferenceNotFound
	case ErrCyclicReference:
		return e.Kind == CyclicReference
	case ErrUnsupportedReference:
		return e.Kind == UnsupportedReference
	}
	return false
}

// FieldError attaches schema and field context to a compile problem.
type FieldError struct {
	Schema  string
	Field   string
	Pointer string // JSON pointer of the schema being compiled
	Err     error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %s: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("schema %s, field %s: %v", e.Schema, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// CompileError aggregates every problem found in one compile run.
type CompileError struct {
	Problems []error
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("compile failed with %d problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *CompileError) Unwrap() []error { return e.Problems }

func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// DispatchKind distinguishes dispatch failures.
type DispatchKind string

const (
	UnknownEndpoint  DispatchKind = "UnknownEndpoint"
	MissingParameter DispatchKind = "MissingParameter"
	InvalidParameter DispatchKind = "InvalidParameter"
	PathMismatch     DispatchKind = "PathMismatch"
)

// DispatchError is returned when a call cannot be routed to an endpoint or
// its declared inputs are not satisfied.
type DispatchError struct {
	Kind     DispatchKind
	Endpoint string
	Method   string
	Path     string
	Param    string
	In       string
	Message  string
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case MissingParameter:
		return fmt.Sprintf("missing required %s parameter %q", e.In, e.Param)
	case InvalidParameter:
		return fmt.Sprintf("invalid %s parameter %q: %s", e.In, e.Param, e.Message)
	case PathMismatch:
		return fmt.Sprintf("no endpoint template matches path %q", e.Path)
	default:
		if e.Endpoint != "" {
			return fmt.Sprintf("unknown endpoint %q", e.Endpoint)
		}
		return fmt.Sprintf("unknown endpoint %s %s", e.Method, e.Path)
	}
}

func (e *DispatchError) Is(target error) bool {
	switch target {
	case ErrDispatch:
		return true
	case ErrUnknownEndpoint:
		return e.Kind == UnknownEndpoint
	case ErrMissingParameter:
		return e.Kind == MissingParameter
	case ErrInvalidParameter:
		return e.Kind == InvalidParameter
	case ErrPathMismatch:
		return e.Kind == PathMismatch
	}
	return false
}

// AuthKind distinguishes credential failures.
type AuthKind string

const (
	MissingCredential   AuthKind = "MissingCredential"
	UnsupportedAuthType AuthKind = "UnsupportedAuthType"
)

// AuthError is returned before any network call when credentials cannot be
// applied.
type AuthError struct {
	Kind     AuthKind
	AuthType string
	ConfigID string
	Field    string
	Cause    error
}

func (e *AuthError) Error() string {
	if e.Kind == UnsupportedAuthType {
		if e.Field != "" {
			return fmt.Sprintf("unsupported %s auth setting %s", e.AuthType, e.Field)
		}
		return fmt.Sprintf("unsupported auth type %q", e.AuthType)
	}
	msg := fmt.Sprintf("missing credential for required %s auth", e.AuthType)
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s)", e.Field)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Cause }

func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return true
	case ErrMissingCredential:
		return e.Kind == MissingCredential
	case ErrUnsupportedAuthType:
		return e.Kind == UnsupportedAuthType
	}
	return false
}

// UnknownTypeError is returned by registry create for an unregistered key.
type UnknownTypeError struct {
	Namespace string
	Key       string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type %q", e.Namespace, e.Key)
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// ValidationError is one collected validation problem. Validation never
// stops at the first problem; callers receive a slice of these.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error at %s: %s", e.Path, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned by lookups of stored entities.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Entity, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Kind returns a short machine-readable kind for err, used in API error
// bodies and call logs. It returns "" for errors outside this package.
func Kind(err error) string {
	var (
		refErr      *ReferenceError
		dispatchErr *DispatchError
		authErr     *AuthError
	)
	switch {
	case errors.Is(err, ErrMissingInfo):
		return "MissingInfo"
	case errors.Is(err, ErrParse):
		return "ParseError"
	case errors.Is(err, ErrCompile):
		return "CompileError"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.As(err, &refErr):
		return string(refErr.Kind)
	case errors.As(err, &dispatchErr):
		return string(dispatchErr.Kind)
	case errors.As(err, &authErr):
		return string(authErr.Kind)
	case errors.Is(err, ErrUnknownType):
		return "UnknownType"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	}
	return ""
}
