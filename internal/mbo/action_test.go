package mbo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mbp-reconstructor/internal/depth"
)

func TestParseActionTag(t *testing.T) {
	cases := map[byte]ActionKind{
		'R': ActionReset,
		'A': ActionAdd,
		'T': ActionTrade,
		'F': ActionFill,
		'C': ActionCancel,
		'M': ActionUnknown,
		'a': ActionUnknown,
	}
	for tag, want := range cases {
		assert.Equal(t, want, ParseActionTag(tag), "tag %q", tag)
	}
}

func TestNewAction(t *testing.T) {
	a, err := NewAction(42, 'A', 'B', 99.5, 100, 1001)
	require.NoError(t, err)
	assert.Equal(t, ActionAdd, a.Kind)
	assert.Equal(t, depth.SideBid, a.Side)
	assert.Equal(t, "42 A B 99.50 100 1001", a.String())

	unknown, err := NewAction(1, 'X', 'N', 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ActionUnknown, unknown.Kind)
	assert.Equal(t, byte('X'), unknown.Tag)

	_, err = NewAction(1, 'A', 'Q', 0, 0, 0)
	assert.ErrorContains(t, err, "unknown side tag")
}

func TestActionJSON(t *testing.T) {
	a, err := NewAction(7, 'C', 'A', 100.5, 200, 1002)
	require.NoError(t, err)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ts":7,"action":"C","side":"A","price":100.5,"size":200,"order_id":1002}`, string(b))

	var back Action
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, a, back)

	assert.Error(t, json.Unmarshal([]byte(`{"ts":1,"action":"","side":"B"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"ts":1,"action":"A","side":"Z"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"ts":1,"action":"AT","side":"B"}`), &back))
}
