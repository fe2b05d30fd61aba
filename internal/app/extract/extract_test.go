package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractScenarios(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Result
	}{
		{
			name: "well formed",
			raw:  `{"responseToUser":"hello","chosenEngine":"GARBHA"}`,
			want: Result{"responseToUser": "hello", "chosenEngine": "GARBHA"},
		},
		{
			name: "fenced and bracketed",
			raw:  "```json\n「{\"responseToUser\":\"hi\"}」\n```",
			want: Result{"responseToUser": "hi"},
		},
		{
			name: "prose around object",
			raw:  "Here you go:\n{\"responseToUser\":\"ok\"}\nThanks.",
			want: Result{"responseToUser": "ok"},
		},
		{
			name: "raw newline inside string is repaired",
			raw:  "{\"responseToUser\":\"line one\nline two\"}",
			want: Result{"responseToUser": "line one line two"},
		},
		{
			name: "nested values survive",
			raw:  "『```\n{\"a\":{\"b\":[1,2]},\"c\":null}\n```』",
			want: Result{"a": map[string]any{"b": []any{1.0, 2.0}}, "c": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.raw)
			if !ok {
				t.Fatalf("Extract(%q) failed", tt.raw)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractUnwrappingIsIdempotent(t *testing.T) {
	const object = `{"responseToUser":"真理","chosenEngine":"VAJRA","echoText":"「響き」"}`
	want, ok := Extract(object)
	if !ok {
		t.Fatal("bare object did not parse")
	}

	wrappers := []func(string) string{
		func(s string) string { return "```json\n" + s + "\n```" },
		func(s string) string { return "```\n" + s + "\n```" },
		func(s string) string { return "```JSON " + s + " ```" },
		func(s string) string { return "「" + s + "」" },
		func(s string) string { return "『 " + s + " 』" },
		func(s string) string { return "  \n" + s + "\n\t" },
	}

	// Every ordered combination up to three levels deep.
	var wrap func(s string, depth int)
	wrap = func(s string, depth int) {
		got, ok := Extract(s)
		if !ok {
			t.Fatalf("Extract failed for %q", s)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Extract(%q) mismatch (-want +got):\n%s", s, diff)
		}
		if depth == 3 {
			return
		}
		for _, w := range wrappers {
			wrap(w(s), depth+1)
		}
	}
	wrap(object, 0)
}

func TestExtractReturnsFalseForProse(t *testing.T) {
	inputs := []string{
		"",
		"just plain prose, no braces",
		"} backwards {",
		"{ not json at all }",
		"```\n```",
		"「」",
		"[1, 2, 3]",
		"{\"unterminated\": ",
		"null",
		"**「bold」**",
	}
	for _, in := range inputs {
		if got, ok := Extract(in); ok || got != nil {
			t.Errorf("Extract(%q) = %v, %v; want nil, false", in, got, ok)
		}
	}
}

func TestResultString(t *testing.T) {
	r := Result{"s": "text", "n": 3.0}
	if got := r.String("s"); got != "text" {
		t.Errorf("String(s) = %q", got)
	}
	if got := r.String("n"); got != "" {
		t.Errorf("String(n) = %q, want empty", got)
	}
	if got := Result(nil).String("s"); got != "" {
		t.Errorf("nil String = %q", got)
	}
}

func TestResultTextFormatsScalars(t *testing.T) {
	r, ok := Extract(`{"stageUpdate": 2, "ratio": 1.5, "flag": true, "s": "3", "obj": {"a": 1}}`)
	if !ok {
		t.Fatal("Extract failed")
	}
	for key, want := range map[string]string{
		"stageUpdate": "2",
		"ratio":       "1.5",
		"flag":        "true",
		"s":           "3",
		"obj":         "",
		"missing":     "",
	} {
		if got := r.Text(key); got != want {
			t.Errorf("Text(%s) = %q, want %q", key, got, want)
		}
	}
	if got := Result(nil).Text("s"); got != "" {
		t.Errorf("nil Text = %q", got)
	}
}
