package format

import (
	"encoding/json"
	"testing"

	"github.com/danielolaszy/rmsnarf/internal/config"
	"github.com/danielolaszy/rmsnarf/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://pulp.plan.io"

func decode(t *testing.T, body string) models.Issue {
	t.Helper()
	var issue models.Issue
	require.NoError(t, json.Unmarshal([]byte(body), &issue))
	return issue
}

func TestFormatDefaultTemplate(t *testing.T) {
	issue := decode(t, `{
		"id": 1234,
		"subject": "Publishing fails with large repositories",
		"tracker": {"id": 1, "name": "Issue"},
		"status": {"id": 2, "name": "ASSIGNED"},
		"priority": {"id": 6, "name": "High"},
		"custom_fields": [
			{"id": 3, "name": "Severity", "value": "3. High"},
			{"id": 4, "name": "Target Platform Release", "value": "2.8.0"}
		]
	}`)

	f := New(config.DefaultFormat, baseURL, "Redmine")
	lines := f.Format("1234", issue)

	assert.Equal(t, []string{
		"Issue #1234 [ASSIGNED] (unassigned) - Priority: High | Severity: High | Target Release: 2.8.0",
		"Publishing fails with large repositories - https://pulp.plan.io/issues/1234",
	}, lines)
}

func TestFormatPrivateIssue(t *testing.T) {
	issue := decode(t, `{
		"subject": "secret",
		"is_private": true,
		"status": {"name": "NEW"},
		"custom_fields": [{"name": "Severity", "value": "1. Low"}]
	}`)

	templates := []string{config.DefaultFormat, "_SUBJECT_", "no tokens at all"}
	for _, template := range templates {
		t.Run(template, func(t *testing.T) {
			f := New(template, baseURL, "Redmine")
			assert.Equal(t, []string{
				"Issue #42 is private and must be viewed in Redmine",
				"https://pulp.plan.io/issues/42",
			}, f.Format("42", issue))
		})
	}
}

func TestFormatPrivateFlagFalsy(t *testing.T) {
	issue := decode(t, `{"subject": "public", "is_private": false}`)
	f := New("_SUBJECT_", baseURL, "Redmine")
	assert.Equal(t, []string{"public"}, f.Format("1", issue))
}

func TestFormatCustomFields(t *testing.T) {
	testCases := []struct {
		name     string
		template string
		fields   string
		expected string
	}{
		{
			name:     "Severity keeps the word after the rank",
			template: "_SEVERITY_",
			fields:   `[{"name":"Severity","value":"0. normal"}]`,
			expected: " | Severity: normal",
		},
		{
			name:     "Severity name is case insensitive",
			template: "_SEVERITY_",
			fields:   `[{"name":"SEVERITY","value":"1. urgent"}]`,
			expected: " | Severity: urgent",
		},
		{
			name:     "Severity without rank",
			template: "_SEVERITY_",
			fields:   `[{"name":"Severity","value":"low"}]`,
			expected: " | Severity: low",
		},
		{
			name:     "Empty severity is cleared",
			template: "x_SEVERITY_y",
			fields:   `[{"name":"Severity","value":""}]`,
			expected: "xy",
		},
		{
			name:     "Empty target platform release is cleared",
			template: "_TARGETPLATFORMRELEASE_",
			fields:   `[{"name":"Target Platform Release","value":""}]`,
			expected: "",
		},
		{
			name:     "Target platform release",
			template: "_TARGETPLATFORMRELEASE_",
			fields:   `[{"name":"Target Platform Release","value":"3.0"}]`,
			expected: " | Target Release: 3.0",
		},
		{
			name:     "Absent optional clauses are cleared",
			template: "a_SEVERITY__TARGETPLATFORMRELEASE_b",
			fields:   `[]`,
			expected: "ab",
		},
		{
			name:     "Generic field with value",
			template: "Platform: _PLATFORMVERSION_",
			fields:   `[{"name":"Platform Version","value":"2.14"}]`,
			expected: "Platform: 2.14",
		},
		{
			name:     "Generic field without value",
			template: "Platform: _PLATFORMVERSION_",
			fields:   `[{"name":"Platform Version","value":""}]`,
			expected: "Platform: None",
		},
		{
			name:     "Generic field with null value",
			template: "Platform: _PLATFORMVERSION_",
			fields:   `[{"name":"Platform Version","value":null}]`,
			expected: "Platform: None",
		},
		{
			name:     "Multiple value fields are skipped",
			template: "Tags: _TAGS_",
			fields:   `[{"name":"Tags","multiple":true,"value":["a","b"]}]`,
			expected: "Tags: _TAGS_",
		},
		{
			name:     "Multiple severity is skipped and then cleared",
			template: "[_SEVERITY_]",
			fields:   `[{"name":"Severity","multiple":true,"value":["1. low"]}]`,
			expected: "[]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issue := decode(t, `{"subject":"s","custom_fields":`+tc.fields+`}`)
			f := New(tc.template, baseURL, "Redmine")
			assert.Equal(t, []string{tc.expected}, f.Format("7", issue))
		})
	}
}

func TestFormatNamedFields(t *testing.T) {
	issue := decode(t, `{
		"subject": "s",
		"status": {"id": 1, "name": "NEW"},
		"category": {"id": 9},
		"fixed_version": {"id": 3, "name": "2.9"},
		"done_ratio": 50
	}`)

	f := New("_STATUS_|_CATEGORY_|_FIXED_VERSION_|_DONE_RATIO_", baseURL, "Redmine")
	assert.Equal(t, []string{"NEW|None|2.9|_DONE_RATIO_"}, f.Format("1", issue),
		"objects without a name fall back to None and scalar fields are not substituted")
}

func TestFormatAssignee(t *testing.T) {
	f := New("(_ASSIGNED_TO_)", baseURL, "Redmine")

	// Documented behavior: the tracker's assignee is discarded and the
	// token always renders as "unassigned". The Python plugin this bot
	// replaces showed the assignee's name when one was set.
	withAssignee := decode(t, `{"subject":"s","assigned_to":{"id":5,"name":"Jane Doe"}}`)
	assert.Equal(t, []string{"(unassigned)"}, f.Format("1", withAssignee))

	withoutAssignee := decode(t, `{"subject":"s"}`)
	assert.Equal(t, []string{"(unassigned)"}, f.Format("1", withoutAssignee))
}

func TestFormatURLOverridesField(t *testing.T) {
	f := New("_URL_", baseURL, "Redmine")

	shadowed := decode(t, `{"subject":"s","url":{"name":"elsewhere"}}`)
	assert.Equal(t, []string{"https://pulp.plan.io/issues/1"}, f.Format("1", shadowed))

	plain := decode(t, `{"subject":"s"}`)
	assert.Equal(t, []string{"https://pulp.plan.io/issues/1"}, f.Format("1", plain))
}

func TestFormatUnknownTokensStay(t *testing.T) {
	issue := decode(t, `{"subject":"s"}`)
	f := New("_NOPE_ #_ID_ _ALSO_NOPE_", baseURL, "Redmine")
	assert.Equal(t, []string{"_NOPE_ #9 _ALSO_NOPE_"}, f.Format("9", issue))
}

func TestFormatMissingRecord(t *testing.T) {
	f := New(config.DefaultFormat, baseURL, "Redmine")
	lines := f.Format("5", nil)

	assert.Equal(t, []string{
		"_TRACKER_ #5 [_STATUS_] (unassigned) - Priority: _PRIORITY_",
		"None - https://pulp.plan.io/issues/5",
	}, lines)
}

func TestFormatSplitsOnEveryCRLF(t *testing.T) {
	issue := decode(t, `{"subject":"s"}`)
	f := New("a_CRLF_b_CRLF__CRLF_c", baseURL, "Redmine")
	assert.Equal(t, []string{"a", "b", "", "c"}, f.Format("1", issue))
}

func TestFormatSubjectIsNotReExpanded(t *testing.T) {
	issue := decode(t, `{"subject":"weird _ID_ in subject","status":{"name":"NEW"}}`)
	f := New("_ID_: _SUBJECT_", baseURL, "Redmine")
	assert.Equal(t, []string{"3: weird _ID_ in subject"}, f.Format("3", issue))
}

func TestFormatIsDeterministic(t *testing.T) {
	issue := decode(t, `{
		"subject": "s",
		"status": {"name": "NEW"},
		"tracker": {"name": "Story"},
		"priority": {"name": "Normal"},
		"project": {"name": "Pulp"},
		"author": {"name": "someone"},
		"custom_fields": [{"name":"Severity","value":"2. Medium"}]
	}`)
	f := New(config.DefaultFormat+" _PROJECT_ _AUTHOR_", baseURL, "Redmine")

	first := f.Format("11", issue)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, f.Format("11", issue))
	}
}

func TestToken(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{name: "Severity", expected: "_SEVERITY_"},
		{name: "Target Platform Release", expected: "_TARGETPLATFORMRELEASE_"},
		{name: "field-name", expected: "_FIELD-NAME_"},
		{name: "field_name", expected: "_FIELD_NAME_"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Token(tc.name))
		})
	}
}
