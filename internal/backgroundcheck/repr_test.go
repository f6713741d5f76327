package backgroundcheck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLiteral(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "absent", raw: "", want: "None"},
		{name: "null", raw: "null", want: "None"},
		{name: "empty list", raw: "[]", want: "[]"},
		{
			name: "addresses keep key order",
			raw:  `[{"street":"1 Main St","unit":null,"zipcode":"94107","from_year":2015,"current":true}]`,
			want: `[{'street': '1 Main St', 'unit': None, 'zipcode': '94107', 'from_year': 2015, 'current': True}]`,
		},
		{
			name: "nested records",
			raw:  `[{"id":"r1","charges":[{"charge":"THEFT","disposition":"dismissed"}],"registrant":false}]`,
			want: `[{'id': 'r1', 'charges': [{'charge': 'THEFT', 'disposition': 'dismissed'}], 'registrant': False}]`,
		},
		{name: "aliases", raw: `[{"first_name":"Jane","last_name":"O'Neil"}]`, want: `[{'first_name': 'Jane', 'last_name': "O'Neil"}]`},
		{name: "both quotes", raw: `["it's \"x\""]`, want: `['it\'s "x"']`},
		{name: "escapes", raw: `["a\\b\nc\td\u0001"]`, want: `['a\\b\nc\td\x01']`},
		{name: "unicode", raw: `["José"]`, want: `['José']`},
		{name: "floats", raw: `[1.5, 2.0, 1e20, 0.00001, -3]`, want: `[1.5, 2.0, 1e+20, 1e-05, -3]`},
		{name: "scalar", raw: `"clear"`, want: `'clear'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderLiteral(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderLiteral_Invalid(t *testing.T) {
	_, err := RenderLiteral(json.RawMessage(`[{"a":1}`))
	assert.Error(t, err)

	_, err = RenderLiteral(json.RawMessage(`[] []`))
	assert.Error(t, err)
}
