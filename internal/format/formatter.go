// Package format renders issue records into chat lines using a token
// template such as "_TRACKER_ #_ID_ [_STATUS_] _CRLF__SUBJECT_ - _URL_".
//
// Tokens are field names uppercased with spaces removed and wrapped in
// underscores. Besides the issue's own fields the template understands
// _ID_, _SUBJECT_, _URL_, _ASSIGNED_TO_ and _CRLF_, which starts a new line.
// Tokens that match nothing are left in the output as written.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielolaszy/rmsnarf/pkg/models"
)

// Special tokens.
const (
	TokenID                    = "_ID_"
	TokenSubject               = "_SUBJECT_"
	TokenURL                   = "_URL_"
	TokenAssignedTo            = "_ASSIGNED_TO_"
	TokenCRLF                  = "_CRLF_"
	TokenSeverity              = "_SEVERITY_"
	TokenTargetPlatformRelease = "_TARGETPLATFORMRELEASE_"
)

// None replaces named-reference fields and custom fields without a value.
const None = "None"

// Unassigned always replaces _ASSIGNED_TO_.
const Unassigned = "unassigned"

// Formatter renders issues. It holds no mutable state and is safe for
// concurrent use.
type Formatter struct {
	template    string
	baseURL     string
	trackerName string
}

// New returns a Formatter for template. baseURL is the tracker root used to
// build issue links and trackerName is shown in the private issue notice.
func New(template, baseURL, trackerName string) *Formatter {
	return &Formatter{
		template:    template,
		baseURL:     strings.TrimRight(baseURL, "/"),
		trackerName: trackerName,
	}
}

// IssueURL returns the browser URL of an issue.
func (f *Formatter) IssueURL(issueID string) string {
	return fmt.Sprintf("%s/issues/%s", f.baseURL, issueID)
}

// Token returns the template token for a field name.
func Token(name string) string {
	return "_" + strings.ToUpper(strings.ReplaceAll(name, " ", "")) + "_"
}

// Format renders issue into one or more lines. A nil issue renders with
// fallbacks only.
func (f *Formatter) Format(issueID string, issue models.Issue) []string {
	if issue.IsPrivate() {
		return []string{
			fmt.Sprintf("Issue #%s is private and must be viewed in %s", issueID, f.trackerName),
			f.IssueURL(issueID),
		}
	}

	msg := f.template
	msg = strings.ReplaceAll(msg, TokenID, issueID)

	subject, ok := issue.Subject()
	if !ok {
		subject = None
	}
	msg = strings.ReplaceAll(msg, TokenSubject, subject)

	msg = replaceNamedFields(msg, issue)
	msg = replaceCustomFields(msg, issue.CustomFields())

	msg = strings.ReplaceAll(msg, TokenURL, f.IssueURL(issueID))
	// The tracker's assigned_to object is never shown.
	msg = strings.ReplaceAll(msg, TokenAssignedTo, Unassigned)

	// Optional clauses whose custom field was absent or empty
	msg = strings.ReplaceAll(msg, TokenSeverity, "")
	msg = strings.ReplaceAll(msg, TokenTargetPlatformRelease, "")

	return strings.Split(msg, TokenCRLF)
}

// reserved tokens are computed by Format and never taken from the record.
var reserved = map[string]bool{
	TokenURL:        true,
	TokenAssignedTo: true,
}

// replaceNamedFields substitutes every object-valued field (status,
// tracker, priority, ...) with its display name. Keys are visited in sorted
// order so output does not depend on map iteration.
func replaceNamedFields(msg string, issue models.Issue) string {
	keys := make([]string, 0, len(issue))
	for key := range issue {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		obj, ok := issue[key].(map[string]any)
		if !ok {
			continue
		}
		token := "_" + strings.ToUpper(key) + "_"
		if reserved[token] {
			continue
		}
		value := None
		if name, ok := obj["name"]; ok && name != nil {
			value = fmt.Sprint(name)
		}
		msg = strings.ReplaceAll(msg, token, value)
	}
	return msg
}

func replaceCustomFields(msg string, fields []models.CustomField) string {
	for _, field := range fields {
		if field.Multiple {
			continue
		}
		value, ok := customFieldValue(field)
		if !ok {
			continue
		}
		msg = strings.ReplaceAll(msg, Token(field.Name), value)
	}
	return msg
}

// customFieldValue applies the per-field rules. ok is false when the token
// should stay unresolved.
func customFieldValue(field models.CustomField) (string, bool) {
	raw := field.ValueString()

	switch strings.ToLower(field.Name) {
	case "severity":
		// stored as "<rank>. <word>", e.g. "2. Medium"
		parts := strings.Fields(raw)
		switch len(parts) {
		case 0:
			return "", false
		case 1:
			return " | Severity: " + parts[0], true
		default:
			return " | Severity: " + parts[1], true
		}
	case "target platform release":
		if field.Empty() {
			return "", false
		}
		return " | Target Release: " + raw, true
	default:
		if field.Empty() {
			return None, true
		}
		return raw, true
	}
}
