package viewer

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/dermadict/internal/analysis"
)

// FailureNotice is shown when the proxy call fails.
const FailureNotice = "Failed to analyze image. Please try again."

var resultTemplate = strings.TrimSpace(dedent.Dedent(`
	Disease: %s

	Causes:
	%s

	Summary:
	%s
`))

// Render formats a result as plain text.
func Render(result *analysis.Result) string {
	if result == nil {
		return ""
	}
	return fmt.Sprintf(resultTemplate, result.Disease, result.Causes, result.Summary)
}
