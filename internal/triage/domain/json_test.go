package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONValue(t *testing.T) {
	v, err := JSON(`{"a":1}`).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = JSON(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestJSONScan(t *testing.T) {
	var j JSON
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, JSON(`{"a":1}`), j)

	require.NoError(t, j.Scan(`{"b":2}`))
	assert.Equal(t, JSON(`{"b":2}`), j)

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.Error(t, j.Scan(42))
}

func TestJSONMarshalsTransparently(t *testing.T) {
	type wrapper struct {
		Payload JSON `json:"payload"`
	}

	out, err := json.Marshal(wrapper{Payload: JSON(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"a":1}}`, string(out))

	out, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":null}`, string(out))

	var decoded wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"payload":{"x":true}}`), &decoded))
	assert.Equal(t, JSON(`{"x":true}`), decoded.Payload)
}

func TestMustJSON(t *testing.T) {
	assert.Equal(t, JSON(`["a","b"]`), MustJSON([]string{"a", "b"}))
	assert.Panics(t, func() { MustJSON(func() {}) })
}
