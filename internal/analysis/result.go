package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	// FallbackDisease is used when the model reply is not valid JSON.
	FallbackDisease = "Analysis Result"
	// FallbackCauses is used when the model reply is not valid JSON.
	FallbackCauses = "Could not parse detailed causes from AI response."
)

// Result is the normalized three-field analysis returned to clients.
type Result struct {
	Disease string `json:"disease"`
	Causes  string `json:"causes"`
	Summary string `json:"summary"`
}

// IsFallback reports whether r was produced from an unparseable reply.
func (r Result) IsFallback() bool {
	return r.Disease == FallbackDisease && r.Causes == FallbackCauses
}

var fenceRegex = regexp.MustCompile("```json\\n?|\\n?```")

// StripFences removes markdown code fences the model tends to wrap JSON in.
func StripFences(text string) string {
	return strings.TrimSpace(fenceRegex.ReplaceAllString(text, ""))
}

// ParseReply turns the raw model reply into a Result. It never fails: when
// the reply is not a JSON object with string fields, the fallback structure
// carries the raw reply in Summary.
func ParseReply(raw string) Result {
	var res Result
	if err := json.Unmarshal([]byte(StripFences(raw)), &res); err != nil {
		return Result{
			Disease: FallbackDisease,
			Causes:  FallbackCauses,
			Summary: raw,
		}
	}
	return res
}
