package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Basic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"bool", Bool(true), "true"},
		{"empty seq", Seq{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"seq of ints", Seq{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"go string", "plain", `"plain"`},
		{"go int", 7, "7"},
		{"go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"go slice", []any{"x", 1}, `["x",1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonical_NestedSortedKeys(t *testing.T) {
	obj := Object{
		"z": Object{"b": Int(1), "a": Int(2)},
		"a": Int(3),
	}
	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a>&</a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a>&</a>"`, string(result))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for name, input := range map[string]any{
		"nil":     nil,
		"null":    Null{},
		"float":   1.5,
		"nested":  Object{"a": Null{}},
		"unknown": struct{}{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MarshalCanonical(input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to U+00E9.
	decomposed, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(String("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))
}

func TestMarshalCanonical_LiteralBackslashEscapePreserved(t *testing.T) {
	// Backslash followed by the text u2028 must stay escaped.
	result, err := MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := Object{"op": String("navigate"), "inputs": Seq{Int(1)}, "var": Int(3)}
	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
