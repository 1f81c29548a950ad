package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-bexpr"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidFilter is returned for filter expressions that do not parse.
var ErrInvalidFilter = errors.New("invalid filter expression")

// bexprCache stores compiled go-bexpr evaluators keyed by expression.
var bexprCache, _ = lru.New[string, *bexpr.Evaluator](256)

// CompileFilter compiles a go-bexpr expression used to filter identities.
// Empty expressions return a nil evaluator, which matches everything.
func CompileFilter(expr string) (*bexpr.Evaluator, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	if cached, ok := bexprCache.Get(expr); ok {
		return cached, nil
	}

	evaluator, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	bexprCache.Add(expr, evaluator)
	return evaluator, nil
}

// FilterDocument is the map a filter expression is evaluated against.
// Selectors: id, email, name, role, isAdmin, disabled, metadata.<key>.
func FilterDocument(id Identity, view AdminView, disabled bool) map[string]any {
	md := DecodeMetadata(id.Metadata)
	metadata := id.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"id":       id.ID,
		"email":    id.Email,
		"name":     id.Name,
		"role":     md.Role,
		"isAdmin":  view.IsAdmin,
		"disabled": disabled,
		"metadata": metadata,
	}
}

// MatchFilter evaluates a compiled filter. Evaluation errors, such as a
// selector missing from the document, count as a non-match.
func MatchFilter(evaluator *bexpr.Evaluator, doc map[string]any) bool {
	if evaluator == nil {
		return true
	}
	matches, err := evaluator.Evaluate(doc)
	if err != nil {
		return false
	}
	return matches
}
