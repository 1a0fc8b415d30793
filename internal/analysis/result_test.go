package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReply_FencedJSON(t *testing.T) {
	raw := "```json\n{\"disease\":\"Eczema\",\"causes\":\"Dry skin\",\"summary\":\"Mild case\"}\n```"
	assert.Equal(t, Result{Disease: "Eczema", Causes: "Dry skin", Summary: "Mild case"}, ParseReply(raw))
}

func TestParseReply_UnfencedJSON(t *testing.T) {
	raw := `  {"disease": "Acne", "causes": "Hormones", "summary": "Common"}  `
	res := ParseReply(raw)
	assert.Equal(t, Result{Disease: "Acne", Causes: "Hormones", Summary: "Common"}, res)
	assert.False(t, res.IsFallback())
}

func TestParseReply_BareFence(t *testing.T) {
	raw := "```\n{\"disease\":\"Psoriasis\",\"causes\":\"Immune\",\"summary\":\"Plaques\"}\n```"
	assert.Equal(t, "Psoriasis", ParseReply(raw).Disease)
}

func TestParseReply_FallbackKeepsRawVerbatim(t *testing.T) {
	raw := "I think this looks like eczema, but I can't be sure.\n"
	res := ParseReply(raw)
	assert.Equal(t, FallbackDisease, res.Disease)
	assert.Equal(t, FallbackCauses, res.Causes)
	assert.Equal(t, raw, res.Summary)
	assert.True(t, res.IsFallback())
}

func TestParseReply_NonObjectJSONFallsBack(t *testing.T) {
	for _, raw := range []string{`["a","b"]`, `"just text"`, `{"disease": 3}`} {
		res := ParseReply(raw)
		assert.True(t, res.IsFallback(), raw)
		assert.Equal(t, raw, res.Summary)
	}
}

func TestParseReply_MissingKeysStayEmpty(t *testing.T) {
	res := ParseReply(`{"disease":"Rosacea"}`)
	assert.Equal(t, Result{Disease: "Rosacea"}, res)
}

func TestEnsureDisclaimer(t *testing.T) {
	withDisclaimer := Result{Summary: "Mild. This is not a substitute for professional medical advice."}
	assert.Equal(t, withDisclaimer, EnsureDisclaimer(withDisclaimer))

	res := EnsureDisclaimer(Result{Disease: "Eczema", Summary: "Mild case"})
	assert.Equal(t, "Mild case\n\n"+Disclaimer, res.Summary)
	assert.Equal(t, "Eczema", res.Disease)

	assert.Equal(t, Disclaimer, EnsureDisclaimer(Result{}).Summary)
}

func TestDecodeDataURI(t *testing.T) {
	mimeType, data, err := DecodeDataURI("data:image/png;base64,AAAA")
	assert.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte{0, 0, 0}, data)

	_, _, err = DecodeDataURI("https://example.com/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, _, err = DecodeDataURI("data:image/png,rawbytes")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestUpstreamErrorCategories(t *testing.T) {
	assert.True(t, errors.Is(&UpstreamError{StatusCode: 429}, ErrRateLimited))
	assert.True(t, errors.Is(&UpstreamError{StatusCode: 402}, ErrPaymentRequired))
	assert.True(t, errors.Is(&UpstreamError{StatusCode: 503}, ErrUpstreamFailed))
	assert.False(t, errors.Is(&UpstreamError{StatusCode: 503}, ErrRateLimited))
}
