package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "The dragon roars.", "The dragon roars."},
		{"script block", "hi <script>alert(1)</script> there", "hi [removed] there"},
		{"script block multiline", "<SCRIPT type=\"text/javascript\">\nsteal()\n</script>", "[removed]"},
		{"iframe unpaired", `look <iframe src="https://evil.example">`, "look [removed]"},
		{"object and embed", `<object data="x"></object><embed src="y">`, "[removed][removed]"},
		{"stray closing tag", "done</script>", "done[removed]"},
		{"quoted handler", `<img src="a.png" onerror="alert(1)">`, `<img src="a.png" >`},
		{"single quoted handler", `<b onmouseover='x()'>bold</b>`, `<b >bold</b>`},
		{"unquoted handler", `<div onclick=steal()>hi</div>`, `<div >hi</div>`},
		{"handler glued to quote", `<a title="t"onclick="x">go</a>`, `<a title="t">go</a>`},
		{"javascript scheme", `<a href="javascript:alert(1)">x</a>`, `<a href="alert(1)">x</a>`},
		{"javascript scheme spaced", "JavaScript :void(0)", "void(0)"},
		{"nested scheme", "javajavascript:script:go", "go"},
		{"prose with equals", "if one = two then none=three", "if one = two then none=three"},
		{"comparison operators", "a < b and c > d", "a < b and c > d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(tt.in))
		})
	}
}

func TestFilterIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"<script>x</script>",
		`<a title="t"onclick="x"onload="y">go</a>`,
		"<scr<script>ipt>alert(1)</script>",
		"javajavascript:script:alert(1)",
		`<img src=x onerror=alert(1) onload=y>`,
		"<embed><embed><embed>",
		"```ascii\n<iframe>\n```",
	}
	for _, in := range inputs {
		once := Filter(in)
		assert.Equal(t, once, Filter(once), "input %q", in)
	}
}

func TestFilterPreservesBenignAsciiBlock(t *testing.T) {
	art := "Here is the map:\n```ascii\n  /\\_/\\\n ( o.o )\n  > ^ <\n +--[ N ]--+\n |  <->   |\n```\nSafe travels."
	assert.Equal(t, art, Filter(art))
	assert.False(t, Changed(art))
}

func TestFilterStripsForbiddenInsideFence(t *testing.T) {
	in := "```ascii\n<script>boom()</script>\n```"
	assert.Equal(t, "```ascii\n[removed]\n```", Filter(in))
}
