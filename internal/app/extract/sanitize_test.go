package extract

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**「真理」**", "真理"},
		{"これは**「真理」**です", "これは「真理」です"},
		{"**『悟り』と**", "『悟り』と"},
		{"**救済」**の道", "救済」の道"},
		{"```markdown\n普通の文章\n```", "普通の文章"},
		{"「『二重』」", "二重"},
		{"  plain  ", "plain"},
		{"**bold without brackets**", "**bold without brackets**"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFixedPoint(t *testing.T) {
	inputs := []string{
		"**「a」**",
		"****「a」****",
		"**「**「nested」**」**",
		"```\n「```json\n**『x』**\n```」\n```",
		"text **「one」** and **「two」** end",
		"**「open** and close」**",
		"prose with no markup",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
