package report

import (
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	notesPolicyOnce sync.Once
	notesPolicy     *bluemonday.Policy
)

// SanitizeNotes strips anything but basic formatting from user supplied
// markup so it can be embedded in the page unescaped.
func SanitizeNotes(raw string) template.HTML {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	cleaned := strings.TrimSpace(notesSanitizer().Sanitize(trimmed))
	return template.HTML(cleaned)
}

func notesSanitizer() *bluemonday.Policy {
	notesPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		notesPolicy = policy
	})
	return notesPolicy
}
