package interfaces

import (
	"errors"
	"fmt"
	"strings"

	"github.com/backoffice/backoffice/internal/platform/httpx"
)

// Type names one admin UI definition.
type Type string

// Known interface types.
const (
	TypeNavigation        Type = "navigation"
	TypeSurvey            Type = "survey"
	TypeArticle           Type = "article"
	TypeUser              Type = "user"
	TypeTag               Type = "tag"
	TypeMenu              Type = "menu"
	TypeSurveyCreateForm  Type = "survey-create-form"
	TypeArticleCreateForm Type = "article-create-form"
)

// CollectionPrivate holds the default definitions served to back-office staff.
const CollectionPrivate = "private"

var (
	// ErrUnknownType indicates a missing or unsupported interface type.
	ErrUnknownType = fmt.Errorf("%w: unknown interface type", httpx.ErrValidation)
	// ErrNotFound indicates no definition is stored for the type.
	ErrNotFound = fmt.Errorf("%w: interface definition", httpx.ErrNotFound)
	// ErrStoreUnreachable indicates the relational store could not be reached.
	ErrStoreUnreachable = errors.New("interfaces: store unreachable")
)

var knownTypes = map[Type]struct{}{
	TypeNavigation: {}, TypeSurvey: {}, TypeArticle: {}, TypeUser: {},
	TypeTag: {}, TypeMenu: {}, TypeSurveyCreateForm: {}, TypeArticleCreateForm: {},
}

// ParseType validates raw against the known interface types.
func ParseType(raw string) (Type, error) {
	t := Type(strings.TrimSpace(raw))
	if _, ok := knownTypes[t]; !ok {
		return "", ErrUnknownType
	}
	return t, nil
}

// Document is a decoded interface definition.
type Document map[string]any

// Granter reports whether a permission code is held.
type Granter interface {
	Has(code string) bool
}

// Filter returns a copy of doc without the entries the caller may not see.
// An object carrying a "permission" string is kept only when that code is
// granted; hidden objects disappear from their parent array or key.
func Filter(doc Document, granted Granter) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if kept, ok := filterNode(v, granted); ok {
			out[k] = kept
		}
	}
	return out
}

func filterNode(node any, granted Granter) (any, bool) {
	switch v := node.(type) {
	case map[string]any:
		if code, ok := v["permission"].(string); ok && code != "" && !granted.Has(code) {
			return nil, false
		}
		return map[string]any(Filter(v, granted)), true
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if kept, ok := filterNode(item, granted); ok {
				out = append(out, kept)
			}
		}
		return out, true
	default:
		return node, true
	}
}
