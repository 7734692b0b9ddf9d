package archivedir

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"abcdef", 3, "abc..."},
		{"héllo", 2, "h..."},
		{"héllo", 3, "hé..."},
		{"日本語", 4, "日..."},
		{"日本語", 2, "..."},
	}

	for _, test := range tests {
		got := truncate(test.input, test.n)
		if got != test.want {
			t.Errorf("truncate(%q, %d) = %q; want %q", test.input, test.n, got, test.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q is not valid UTF-8", test.input, test.n, got)
		}
	}
}

func TestToolErrorDiagnosticStaysValidUTF8(t *testing.T) {
	diag := strings.Repeat("ä", maxDiagnosticLength)
	err := &ToolError{Tool: "7z", ExitCode: 2, Diagnostic: diag}
	if !utf8.ValidString(err.Error()) {
		t.Errorf("expected valid UTF-8 in %q", err.Error())
	}
}
