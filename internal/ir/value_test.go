package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Sealed(t *testing.T) {
	values := []Value{Null{}, String("a"), Int(1), Bool(true), Seq{}, Object{}}
	for _, v := range values {
		assert.NotNil(t, v)
	}
}

func TestObject_SortedKeys(t *testing.T) {
	obj := Object{"zebra": Int(1), "alpha": Int(2), "beta": Int(3)}
	assert.Equal(t, []string{"alpha", "beta", "zebra"}, obj.SortedKeys())
}

func TestObject_SortedKeysUTF16Order(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := Object{"\uE000": Int(1), "\U00010000": Int(2)}
	assert.Equal(t, []string{"\U00010000", "\uE000"}, obj.SortedKeys())
}

func TestNewObject(t *testing.T) {
	obj := NewObject(O("name", String("b")), O("depth", Int(3)))
	require.Len(t, obj, 2)
	assert.Equal(t, String("b"), obj["name"])
	assert.Equal(t, Int(3), obj["depth"])
}

func TestClone_Deep(t *testing.T) {
	orig := Seq{String("a"), Object{"k": Seq{Int(1)}}}
	c := Clone(orig).(Seq)
	c[1].(Object)["k"].(Seq)[0] = Int(2)
	c[0] = Null{}

	assert.Equal(t, Seq{String("a"), Object{"k": Seq{Int(1)}}}, orig)
	assert.Equal(t, Bool(true), Clone(Bool(true)))
	assert.Nil(t, Clone(Seq(nil)))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("a"), String("a"), true},
		{"different string", String("a"), String("b"), false},
		{"string vs int", String("1"), Int(1), false},
		{"null", Null{}, Null{}, true},
		{"seq equal", Seq{Int(1), String("x")}, Seq{Int(1), String("x")}, true},
		{"seq length", Seq{Int(1)}, Seq{Int(1), Int(2)}, false},
		{"object equal", Object{"a": Bool(true)}, Object{"a": Bool(true)}, true},
		{"object missing key", Object{"a": Bool(true)}, Object{"b": Bool(true)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, `"b"`, Format(String("b")))
	assert.Equal(t, "42", Format(Int(42)))
	assert.Equal(t, "true()", Format(Bool(true)))
	assert.Equal(t, "()", Format(Null{}))
	assert.Equal(t, `(1, "x")`, Format(Seq{Int(1), String("x")}))
	assert.Equal(t, `{a: 1, b: "y"}`, Format(Object{"b": String("y"), "a": Int(1)}))
}

func TestMarshalValue_RoundTrip(t *testing.T) {
	values := []Value{
		String("child"),
		Int(-7),
		Bool(false),
		Seq{String("a"), Int(2)},
		Object{"k": Seq{Bool(true)}},
	}
	for _, v := range values {
		data, err := MarshalValue(v)
		require.NoError(t, err)

		back, err := UnmarshalValue(data)
		require.NoError(t, err)
		assert.True(t, Equal(v, back), "round trip of %s", Format(v))
	}
}

func TestUnmarshalValue_RejectsFloats(t *testing.T) {
	for _, input := range []string{"1.5", "1e3", `{"a": 2.0}`, `[0.1]`} {
		_, err := UnmarshalValue([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestUnmarshalValue_NullBecomesNull(t *testing.T) {
	v, err := UnmarshalValue([]byte("null"))
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)
}

func TestFromGo_YAMLShapes(t *testing.T) {
	v, err := FromGo(map[string]any{"names": []any{"a", 3, true}})
	require.NoError(t, err)
	assert.True(t, Equal(Object{"names": Seq{String("a"), Int(3), Bool(true)}}, v))

	_, err = FromGo(2.5)
	assert.Error(t, err)
}
