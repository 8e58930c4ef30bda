package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeForMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain text", want: "plain text"},
		{in: "v1.2 (beta)!", want: `v1\.2 \(beta\)\!`},
		{in: "a_b*c", want: `a\_b\*c`},
		{in: `back\slash`, want: `back\\slash`},
		{in: "https://example.com/a-b?x=1", want: `https://example\.com/a\-b?x\=1`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeForMarkdown(tt.in), tt.in)
	}
}

func TestBold(t *testing.T) {
	assert.Equal(t, `*AI \#1*`, Bold("AI #1"))
}
