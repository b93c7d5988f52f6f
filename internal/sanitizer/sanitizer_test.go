package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestSanitize_NilPassesThrough(t *testing.T) {
	assert.Nil(t, New().Sanitize(nil, []string{"p"}))
}

func TestSanitize_StripsDisallowedElements(t *testing.T) {
	got := New().Sanitize(ptr(`<p>Safe</p><script>alert(1)</script><div>X</div>`), []string{"p"})
	require.NotNil(t, got)

	assert.Contains(t, *got, "<p>Safe</p>")
	assert.NotContains(t, *got, "<script>")
	assert.NotContains(t, *got, "alert(1)")
	assert.NotContains(t, *got, "<div>")
	assert.Contains(t, *got, "X")
}

func TestSanitize_EmptyAllowListKeepsTextOnly(t *testing.T) {
	got := New().Sanitize(ptr(`<h2>Headline</h2><p>Body <strong>bold</strong></p>`), nil)
	require.NotNil(t, got)

	assert.NotContains(t, *got, "<")
	assert.Contains(t, *got, "Headline")
	assert.Contains(t, *got, "bold")
}

func TestSanitize_AllowListIsNormalized(t *testing.T) {
	s := New()
	got := s.Sanitize(ptr(`<P>one</P><em>two</em>`), []string{" <p> ", "EM", "p"})
	require.NotNil(t, got)

	assert.Contains(t, *got, "<p>one</p>")
	assert.Contains(t, *got, "<em>two</em>")
	assert.Len(t, s.policies, 1)
}

func TestSanitize_LinksAndImages(t *testing.T) {
	raw := `<a href="https://example.com" onclick="x()">link</a><a href="javascript:alert(1)">bad</a>` +
		`<img src="https://example.com/i.png" alt="pic" onerror="x()">`
	got := New().Sanitize(ptr(raw), []string{"a", "img"})
	require.NotNil(t, got)

	assert.Contains(t, *got, `href="https://example.com"`)
	assert.Contains(t, *got, `src="https://example.com/i.png"`)
	assert.NotContains(t, *got, "onclick")
	assert.NotContains(t, *got, "onerror")
	assert.NotContains(t, *got, "javascript:")
}

func TestSanitize_MalformedMarkupIsTolerated(t *testing.T) {
	got := New().Sanitize(ptr(`<p>unclosed <b>bold`), []string{"p", "b"})
	require.NotNil(t, got)
	assert.Contains(t, *got, "unclosed")
	assert.Contains(t, *got, "bold")
}

func TestSanitize_EscapesTextEntities(t *testing.T) {
	got := New().Sanitize(ptr(`<p>Tom & Jerry's "show"</p>`), []string{"p"})
	require.NotNil(t, got)

	assert.Equal(t, `<p>Tom &amp; Jerry&#39;s &#34;show&#34;</p>`, *got)
}
