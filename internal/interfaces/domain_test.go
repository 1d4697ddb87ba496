package interfaces

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
)

func TestParseType(t *testing.T) {
	typ, err := ParseType(" survey-create-form ")
	require.NoError(t, err)
	assert.Equal(t, TypeSurveyCreateForm, typ)

	for _, raw := range []string{"", "dashboard", "NAVIGATION"} {
		_, err := ParseType(raw)
		assert.ErrorIs(t, err, ErrUnknownType, raw)
		assert.ErrorIs(t, err, httpx.ErrValidation, raw)
	}
}

func TestFilterDropsEntriesWithoutGrant(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Back office",
		"items": [
			{"label": "Users", "permission": "READ_USERS", "children": [
				{"label": "Delete", "permission": "DELETE_USERS"},
				{"label": "Edit", "permission": "WRITE_USERS"}
			]},
			{"label": "Roles", "permission": "VIEW_ALL_ROLES"},
			{"label": "Help"}
		],
		"danger": {"permission": "DELETE_USERS", "label": "Purge"}
	}`), &doc))

	out := Filter(doc, rbac.NewPermissionSet("READ_USERS", "WRITE_USERS"))

	got, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title": "Back office",
		"items": [
			{"label": "Users", "permission": "READ_USERS", "children": [
				{"label": "Edit", "permission": "WRITE_USERS"}
			]},
			{"label": "Help"}
		]
	}`, string(got))
	assert.Contains(t, doc, "danger")
}

func TestFilterWithoutPermissionsKeepsOnlyPublicEntries(t *testing.T) {
	doc := Document{"items": []any{
		map[string]any{"label": "Users", "permission": "READ_USERS"},
		map[string]any{"label": "Help", "permission": ""},
	}}
	out := Filter(doc, rbac.PermissionSet(nil))
	assert.Equal(t, []any{map[string]any{"label": "Help", "permission": ""}}, out["items"])
}
