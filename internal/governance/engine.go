// Package governance evaluates declarative rules that every alias creation
// request must satisfy before the registry admits it.
package governance

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports the governance rule a request violated.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Rule == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed [%s]: %s", e.Rule, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Request is the alias creation request as seen by governance.
type Request struct {
	Name          string
	Canonical     string
	Context       string
	Type          models.AliasType
	Description   string
	CreatedBy     string
	ExpiresInDays *int
}

// Engine holds the active rule set. It is safe for concurrent use and
// the rule set can be swapped at runtime by Reload or Watch.
type Engine struct {
	mu     sync.RWMutex
	doc    *Document
	path   string
	logger *slog.Logger
}

// NewEngine creates an engine over doc. A nil doc uses DefaultDocument.
func NewEngine(doc *Document, logger *slog.Logger) *Engine {
	if doc == nil {
		doc = DefaultDocument()
	}
	return &Engine{doc: doc, logger: logger}
}

// NewEngineFromFile loads path and remembers it for Reload and Watch.
func NewEngineFromFile(path string, logger *slog.Logger) (*Engine, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	e := NewEngine(doc, logger)
	e.path = path
	logger.Info("governance rules loaded", "path", path, "rules", len(doc.Rules))
	return e, nil
}

// Document returns the active rule set. Callers must not modify it.
func (e *Engine) Document() *Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc
}

// Replace swaps in a new validated rule set.
func (e *Engine) Replace(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	return nil
}

// Reload re-reads the rules file. On error the previous rules stay active.
func (e *Engine) Reload() error {
	if e.path == "" {
		return fmt.Errorf("governance: engine has no rules file to reload")
	}
	doc, err := LoadFile(e.path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	e.logger.Info("governance rules reloaded", "path", e.path, "rules", len(doc.Rules))
	return nil
}

// DefaultTTL returns the configured default lifetime for aliases of type t.
func (e *Engine) DefaultTTL(t models.AliasType) (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.doc.AliasTypes[t]
	if !ok || p.DefaultTTLDays <= 0 {
		return 0, false
	}
	return time.Duration(p.DefaultTTLDays) * 24 * time.Hour, true
}

// IsReserved reports whether context is a reserved context.
func (e *Engine) IsReserved(context string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Contains(e.doc.ReservedContexts, context)
}

// Validate evaluates every rule in order and returns the first violation.
// anchor is the canonical anchor, or nil when it does not exist.
func (e *Engine) Validate(req Request, anchor *models.Anchor) error {
	e.mu.RLock()
	doc := e.doc
	e.mu.RUnlock()

	for i := range doc.Rules {
		if msg := evaluate(doc, &doc.Rules[i], &req, anchor); msg != "" {
			return &ValidationError{Rule: doc.Rules[i].Name, Message: msg}
		}
	}
	return nil
}

// evaluate returns a violation message, or "" when the rule passes.
func evaluate(doc *Document, r *Rule, req *Request, anchor *models.Anchor) string {
	switch r.Kind {
	case KindRequireNonEmpty:
		if strings.TrimSpace(fieldValue(req, r.Field)) == "" {
			return r.Field + " must not be empty"
		}
	case KindMaxLength:
		if utf8.RuneCountInString(fieldValue(req, r.Field)) > r.Max {
			return fmt.Sprintf("%s must be at most %d characters", r.Field, r.Max)
		}
	case KindRequireValidType:
		if !req.Type.IsValid() {
			return fmt.Sprintf("unknown alias type %q", req.Type)
		}
	case KindNonNegativeExpiry:
		if req.ExpiresInDays != nil && *req.ExpiresInDays < 0 {
			return "expires_in_days must not be negative"
		}
	case KindRequireOwner:
		if anchor == nil {
			return fmt.Sprintf("canonical anchor %q does not exist", req.Canonical)
		}
		if strings.TrimSpace(anchor.Owner) == "" {
			return fmt.Sprintf("canonical anchor %q has no owner", anchor.ID)
		}
	case KindForbidTypeInReservedContext:
		if slices.Contains(r.Types, req.Type) && slices.Contains(doc.ReservedContexts, req.Context) {
			return fmt.Sprintf("%s aliases are not allowed in reserved context %q", req.Type, req.Context)
		}
	case KindRequireExpiry:
		if slices.Contains(r.Types, req.Type) && req.ExpiresInDays == nil {
			return fmt.Sprintf("%s aliases require an explicit expiration", req.Type)
		}
	}
	return ""
}

func fieldValue(req *Request, field string) string {
	switch field {
	case FieldName:
		return req.Name
	case FieldContext:
		return req.Context
	case FieldCanonical:
		return req.Canonical
	case FieldCreatedBy:
		return req.CreatedBy
	case FieldDescription:
		return req.Description
	}
	return ""
}
