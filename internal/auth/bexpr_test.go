package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilter(t *testing.T) {
	doc := FilterDocument(
		Identity{ID: "p1", Email: "ops@example.com", Name: "Ops", Metadata: map[string]any{"role": "admin", "tier": "gold"}},
		AdminView{IsAdmin: true, AllPermissions: true},
		false,
	)

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "empty matches all", expr: "  ", want: true},
		{name: "role equality", expr: `role == "admin"`, want: true},
		{name: "email substring", expr: `email contains "example"`, want: true},
		{name: "boolean selector", expr: `isAdmin == true and disabled == false`, want: true},
		{name: "metadata selector", expr: `metadata.tier == "gold"`, want: true},
		{name: "negative", expr: `name == "Someone"`, want: false},
		{name: "missing metadata key", expr: `metadata.missing == "x"`, want: false},
		{name: "syntax error", expr: `role ==`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator, err := CompileFilter(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, MatchFilter(evaluator, doc))
		})
	}
}

func TestCompileFilter_Cached(t *testing.T) {
	first, err := CompileFilter(`role == "member"`)
	require.NoError(t, err)
	second, err := CompileFilter(`role == "member"`)
	require.NoError(t, err)
	assert.Same(t, first, second)
}
