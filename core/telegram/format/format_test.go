package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("0xAB_c.d (x) #1!", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, `0xAB\_c\.d \(x\) \#1\!`, got)
}

func TestEscapeMarkdownV1(t *testing.T) {
	got, err := EscapeMarkdown("a_b*c`d[e]", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, "a\\_b\\*c\\`d\\[e]", got)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)
}

func TestHTMLHelpers(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;&amp;", EscapeHTML("<b>&"))
	assert.Equal(t, "<code>a&lt;b</code>", Code("a<b"))
	assert.Equal(t, `<a href="https://t.me/x?a=1&amp;b=2">https://t.me/x?a=1&amp;b=2</a>`, Link("https://t.me/x?a=1&b=2", ""))
}

func TestValues(t *testing.T) {
	s := "@alice"
	assert.Equal(t, "@alice", DerefString(&s, "N/A"))
	assert.Equal(t, "N/A", DerefString(nil, "N/A"))
	assert.Equal(t, "1.50", Amount(decimal.RequireFromString("1.5")))
	assert.Equal(t, "0.00", Amount(decimal.Zero))
}
