package neo4jgraphql

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	assert.Equal(t, "YXJyYXljb25uZWN0aW9uOjA=", encodeCursor(0))

	offset, err := cursorOffset(encodeCursor(41))
	require.NoError(t, err)
	assert.Equal(t, 41, offset)

	for _, invalid := range []string{"%%%", "bm90LWEtY3Vyc29y", encodeCursor(-1)} {
		_, err := cursorOffset(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestCheckAuthorized(t *testing.T) {
	assert.NoError(t, checkAuthorized([]any{
		map[string]any{"title": "Dusk"},
		map[string]any{"title": "Dawn", authorizedKey: true},
	}))
	assert.ErrorIs(t, checkAuthorized([]any{
		map[string]any{"title": "Dusk", authorizedKey: true},
		map[string]any{"title": "Dawn", authorizedKey: false},
	}), ErrForbidden)

	// Nested relationship projections are checked too
	assert.ErrorIs(t, checkAuthorized(map[string]any{
		"name":  "Ann",
		"books": []any{map[string]any{authorizedKey: nil}},
	}), ErrForbidden)
}

func TestObjectMarshalJSON(t *testing.T) {
	obj := newObject(3)
	obj.set("zeta", 1)
	obj.set("alpha", "a")
	obj.set("nested", []any{true, nil})

	b, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","nested":[true,null]}`, string(b))
}

func TestSerializeScalar(t *testing.T) {
	tests := []struct {
		name    string
		scalar  string
		value   any
		want    any
		wantErr bool
	}{
		{name: "Int", scalar: intType, value: 3, want: int64(3)},
		{name: "IntFromWholeFloat", scalar: intType, value: float64(4), want: int64(4)},
		{name: "IntFromFraction", scalar: intType, value: 4.5, wantErr: true},
		{name: "IntMax", scalar: intType, value: int64(math.MaxInt32), want: int64(math.MaxInt32)},
		{name: "IntMin", scalar: intType, value: int64(math.MinInt32), want: int64(math.MinInt32)},
		{name: "IntAboveRange", scalar: intType, value: int64(math.MaxInt32) + 1, wantErr: true},
		{name: "IntBelowRange", scalar: intType, value: int64(math.MinInt32) - 1, wantErr: true},
		{name: "FloatFromLargeInt", scalar: floatType, value: int64(1) << 40, want: float64(int64(1) << 40)},
		{name: "FloatFromInt", scalar: floatType, value: int64(2), want: float64(2)},
		{name: "IDFromInt", scalar: idType, value: int64(7), want: "7"},
		{name: "String", scalar: stringType, value: "x", want: "x"},
		{name: "StringFromInt", scalar: stringType, value: 1, wantErr: true},
		{name: "Boolean", scalar: booleanType, value: true, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := serializeScalar(tc.scalar, tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
