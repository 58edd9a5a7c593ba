package report_test

import (
	"encoding/json"
	"testing"

	"github.com/medflow/medinsight/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(v report.Value) []string {
	var out []string
	for _, f := range v.Fields() {
		out = append(out, f.Key)
	}
	return out
}

func TestParse_PreservesKeyOrder(t *testing.T) {
	v, err := report.Parse([]byte(`{"zeta": 1, "alpha": {"b": 2, "a": 3}, "mid": [1, "x", null, true]}`))
	require.NoError(t, err)

	assert.Equal(t, report.KindMapping, v.Kind())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys(v))

	alpha, ok := v.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, keys(alpha))

	mid, _ := v.Get("mid")
	require.Equal(t, 4, mid.Len())
	assert.Equal(t, report.PrimitiveNumber, mid.Items()[0].PrimitiveType())
	assert.Equal(t, "x", mid.Items()[1].Text())
	assert.Equal(t, report.PrimitiveNull, mid.Items()[2].PrimitiveType())
	assert.Equal(t, "", mid.Items()[2].Text())
	assert.Equal(t, "true", mid.Items()[3].Text())
}

func TestParse_KeepsNumberLiteral(t *testing.T) {
	v, err := report.Parse([]byte(`{"hemoglobin": 13.50, "count": -2}`))
	require.NoError(t, err)

	h, _ := v.Get("hemoglobin")
	assert.Equal(t, "13.50", h.Text())
	c, _ := v.Get("count")
	assert.Equal(t, "-2", c.Text())
}

func TestParse_DuplicateKeyKeepsFirstPositionLastValue(t *testing.T) {
	v, err := report.Parse([]byte(`{"a": 1, "b": 2, "a": 3}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, keys(v))
	a, _ := v.Get("a")
	assert.Equal(t, "3", a.Text())
}

func TestParse_TopLevelSequence(t *testing.T) {
	v, err := report.Parse([]byte(`["a", "b"]`))
	require.NoError(t, err)
	assert.Equal(t, report.KindSequence, v.Kind())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", report.ErrEmptyDocument},
		{"whitespace", "  \n", report.ErrEmptyDocument},
		{"truncated", `{"a": 1`, report.ErrInvalidDocument},
		{"trailing garbage", `{"a": 1} x`, report.ErrInvalidDocument},
		{"bare word", `stable`, report.ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := report.Parse([]byte(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseLenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"plain", `{"patient_summary": "Stable", "allergies": ["Penicillin"]}`},
		{"fenced", "```json\n{\"patient_summary\": \"Stable\", \"allergies\": [\"Penicillin\"]}\n```"},
		{"trailing comma", `{"patient_summary": "Stable", "allergies": ["Penicillin",],}`},
		{"single quotes", `{'patient_summary': 'Stable', 'allergies': ['Penicillin']}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := report.ParseLenient(tt.in)
			require.NoError(t, err)
			assert.Equal(t, []string{"patient_summary", "allergies"}, keys(v))
			allergies, _ := v.Get("allergies")
			assert.Equal(t, "Penicillin", allergies.Items()[0].Text())
		})
	}
}

func TestValue_MarshalJSONRoundTripsOrder(t *testing.T) {
	in := `{"z":{"b":[1,"two",null,false],"a":"x"},"y":2.50}`
	v, err := report.Parse([]byte(in))
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}
