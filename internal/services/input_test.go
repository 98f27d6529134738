package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberDecoding(t *testing.T) {
	var in struct {
		A *Number `json:"a"`
		B *Number `json:"b"`
		C *Number `json:"c"`
		D *Number `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.5, "b": "1,25,000", "c": "", "d": null}`), &in))

	assert.Equal(t, 12.5, *in.A.Float())
	assert.Equal(t, 125000.0, *in.B.Float())
	assert.Nil(t, in.D.Float())
	assert.Equal(t, 0, *in.C.Int(), "empty string decodes to the zero value")

	var bad struct {
		N *Number `json:"n"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"n": "twelve"}`), &bad))
}

func TestTextListDecoding(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want []string
	}{
		"array":        {`[" Pool ", "Gym", "Pool", ""]`, []string{"Pool", "Gym"}},
		"encoded":      {`"[\"Lift\",\"Park\"]"`, []string{"Lift", "Park"}},
		"newlines":     {`"Near metro\r\nNear school\n\n"`, []string{"Near metro", "Near school"}},
		"plain string": {`"Clubhouse"`, []string{"Clubhouse"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var l TextList
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &l))
			assert.Equal(t, tc.want, []string(l))
		})
	}
}

func TestDateDecoding(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-12-31"`), &d))
	assert.Equal(t, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *d.Ptr())

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.Nil(t, empty.Ptr())

	assert.Error(t, json.Unmarshal([]byte(`"31/12/2026"`), &d))
}
