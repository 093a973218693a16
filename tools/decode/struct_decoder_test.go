package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	RoomID  int64  `json:"roomId"`
	Content string `json:"content"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    sample
		wantErr bool
	}{
		{name: "numbers", raw: `{"roomId":5,"content":"hi"}`, want: sample{RoomID: 5, Content: "hi"}},
		{name: "numeric string id", raw: `{"roomId":"12","content":"x"}`, want: sample{RoomID: 12, Content: "x"}},
		{name: "fractional id", raw: `{"roomId":5.5}`, wantErr: true},
		{name: "garbage id", raw: `{"roomId":"abc"}`, wantErr: true},
		{name: "object id", raw: `{"roomId":{"a":1}}`, wantErr: true},
		{name: "not json", raw: `{`, wantErr: true},
		{name: "integral float id", raw: `{"roomId":5.0}`, want: sample{RoomID: 5}},
		{name: "id beyond float precision", raw: `{"roomId":9007199254740993}`, want: sample{RoomID: 9007199254740993}},
		{name: "bool id", raw: `{"roomId":true}`, wantErr: true},
		{name: "number content", raw: `{"roomId":1,"content":123}`, wantErr: true},
		{name: "bool content", raw: `{"roomId":1,"content":false}`, wantErr: true},
		{name: "array", raw: `[1]`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "trailing data", raw: `{"roomId":1} {"roomId":2}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJSON[sample]([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestReadString(t *testing.T) {
	m := map[string]any{"type": "join_room", "n": 3.0}

	s, err := ReadString(m, "type")
	require.NoError(t, err)
	assert.Equal(t, "join_room", s)

	_, err = ReadString(m, "n")
	assert.Error(t, err)

	_, err = ReadString(m, "missing")
	assert.Error(t, err)
}

func TestDecodeJSONWeak(t *testing.T) {
	got, err := DecodeJSON[sample]([]byte(`{"roomId":true,"content":7}`), WithWeaklyTypedInput(true))
	require.NoError(t, err)
	assert.Equal(t, sample{RoomID: 1, Content: "7"}, *got)
}
