package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"term", term("coffee"), "coffee"},
		{"negated term", notTerm("coffee"), "-coffee"},
		{"phrase", term("blue tokai"), `"blue tokai"`},
		{"empty term", term(""), `""`},
		{"leading hyphen is quoted", term("-5"), `"-5"`},
		{"colon is quoted", term("a:b"), `"a:b"`},
		{"parens are quoted", term("(x)"), `"(x)"`},
		{"embedded quote is raw", term(`it"s`), `it"s`},
		{"field", field("amount", "10"), "amount:10"},
		{"negated field", notField("amount", ">10"), "-amount:>10"},
		{"field with phrase", field("description", "dinner with"), `description:"dinner with"`},
		{"field with empty value", field("category", ""), `category:""`},
		{"root group", group(term("a"), group(term("b"), term("c"))), "a (b c)"},
		{"negated nested group", group(notGroup(term("a"), term("b"))), "-(a b)"},
		{"empty nested group", group(group()), "()"},
		{"prohibited root", notGroup(term("a")), "-(a)"},
		{"empty root", group(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.String())
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		"-hello",
		`description:"dinner with"`,
		"-amount:10",
		"(a b) c",
		"-(a b)",
		`merchant:"blue tokai" -category:travel (amount:>500 -label:reimbursed) coffee`,
		"a) b",
		":a :a:b",
		"category: food",
		`category:"" ""`,
		"amount:-10",
		"() (()) -()",
		`"(x)" "a:b" "-y"`,
		`it"s f(x)`,
		"a:b:c",
		"(a:)",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first := Parse(input)
			second := Parse(first.String())
			assertTree(t, first, second)
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	got, err := json.Marshal(Parse(`-(a amount:10) ""`))
	require.NoError(t, err)

	want := `{"type":"group","prohibited":false,"children":[` +
		`{"type":"group","prohibited":true,"children":[` +
		`{"type":"term","value":"a","prohibited":false},` +
		`{"type":"field","field":"amount","value":"10","prohibited":false}]},` +
		`{"type":"term","value":"","prohibited":false}]}`
	assert.JSONEq(t, want, string(got))
}

func TestMarshalJSON_EmptyGroup(t *testing.T) {
	got, err := json.Marshal(Parse(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"group","prohibited":false,"children":[]}`, string(got))
}

func TestWalk(t *testing.T) {
	var kinds []Kind
	Walk(Parse("a (b:c (d)) e"), func(n Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	assert.Equal(t, []Kind{KindGroup, KindTerm, KindGroup, KindFieldTerm, KindGroup, KindTerm, KindTerm}, kinds)
}

func TestWalk_SkipChildren(t *testing.T) {
	var visited int
	Walk(Parse("a (b c) d"), func(n Node) bool {
		visited++
		_, isGroup := n.(Group)
		return !isGroup || visited == 1
	})
	// root, a, (b c) without its children, d
	assert.Equal(t, 4, visited)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Parse("a (b)"), group(term("a"), group(term("b")))))
	assert.False(t, Equal(term("a"), notTerm("a")))
	assert.False(t, Equal(term("a"), field("a", "")))
	assert.False(t, Equal(group(term("a")), group(term("a"), term("b"))))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(term("a"), nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "term", KindTerm.String())
	assert.Equal(t, "field", KindFieldTerm.String())
	assert.Equal(t, "group", KindGroup.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
