package analysis

import (
	"strings"

	"github.com/lithammer/dedent"
)

// SystemPrompt instructs the model to reply with the three-key JSON object.
var SystemPrompt = strings.TrimSpace(dedent.Dedent(`
	You are an expert dermatologist AI assistant. Analyze skin condition images and provide:
	1. The most likely skin disease/condition name
	2. Possible causes (be specific and medically accurate)
	3. A comprehensive summary including symptoms, severity assessment, and general recommendations

	Be professional, accurate, and always include a disclaimer that this is not a substitute for professional medical advice.

	Format your response as JSON with these exact keys:
	{
	  "disease": "Name of the condition",
	  "causes": "Detailed explanation of possible causes",
	  "summary": "Comprehensive summary with symptoms and recommendations"
	}
`))

// UserInstruction is the text part sent alongside the image.
const UserInstruction = "Please analyze this skin condition image and provide a detailed assessment."

// Disclaimer is appended by EnsureDisclaimer when the model omitted one.
const Disclaimer = "Disclaimer: This analysis is not a substitute for professional medical advice. Please consult a qualified dermatologist."

var disclaimerMarkers = []string{
	"disclaimer",
	"not a substitute",
	"medical advice",
	"consult a",
}

// HasDisclaimer reports whether the summary already carries a disclaimer.
func HasDisclaimer(summary string) bool {
	lower := strings.ToLower(summary)
	for _, m := range disclaimerMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// EnsureDisclaimer returns r with Disclaimer appended to the summary if the
// model did not include one.
func EnsureDisclaimer(r Result) Result {
	if HasDisclaimer(r.Summary) {
		return r
	}
	if r.Summary == "" {
		r.Summary = Disclaimer
	} else {
		r.Summary = strings.TrimRight(r.Summary, " \n") + "\n\n" + Disclaimer
	}
	return r
}
