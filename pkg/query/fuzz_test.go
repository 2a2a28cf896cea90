package query

import (
	"strings"
	"testing"
	"unicode"
)

// plainSpacing reports whether the only whitespace in s is ' '. Other
// whitespace is token text to the scanner but is trimmed from the edges of
// field names, which can expose a leading "-" or "(" on re-parse.
func plainSpacing(s string) bool {
	for _, r := range s {
		if r != ' ' && unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func FuzzParse(f *testing.F) {
	f.Add("")
	f.Add("   ")
	f.Add("hello -world")
	f.Add(`description:"dinner with" -amount:10`)
	f.Add("(a (b c)")
	f.Add("-(a b) c)")
	f.Add(`unterminated:"oops`)
	f.Add("a:b:c :d ::")
	f.Add("\x00\xff(\")\x80:-")
	f.Add(strings.Repeat("(", 200))

	f.Fuzz(func(t *testing.T, input string) {
		// Should not panic.
		root := Parse(input)

		if root.Prohibited() {
			t.Error("root group is prohibited")
		}

		Walk(root, func(n Node) bool {
			switch x := n.(type) {
			case FieldTerm:
				if x.Field() == "" {
					t.Error("field term with empty field")
				}
				if x.Field() != strings.TrimSpace(x.Field()) || x.Value() != strings.TrimSpace(x.Value()) {
					t.Errorf("untrimmed field term %q:%q", x.Field(), x.Value())
				}
			case Term:
				if x.Value() != strings.TrimSpace(x.Value()) {
					t.Errorf("untrimmed term %q", x.Value())
				}
			}
			return true
		})

		if len(Validate(input)) > 0 || !plainSpacing(input) {
			return
		}
		again := Parse(root.String())
		if !Equal(root, again) {
			t.Errorf("round trip changed tree\ninput:  %q\nfirst:  %s\nstring: %q\nsecond: %s",
				input, dump(root), root.String(), dump(again))
		}
	})
}
