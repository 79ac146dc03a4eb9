package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{
			name: "nested print",
			in:   `{"command":"print","data":{"file_url":"https://x/a.gcode","file_name":"a.gcode"}}`,
			want: Command{Kind: "print", Data: &PrintData{FileURL: "https://x/a.gcode", FileName: "a.gcode"}},
		},
		{
			name: "flat print",
			in:   `{"command":"print","file_url":"https://x/a.gcode","file_name":"a.gcode"}`,
			want: Command{Kind: "print", Data: &PrintData{FileURL: "https://x/a.gcode", FileName: "a.gcode"}},
		},
		{
			name: "nested wins over flat",
			in:   `{"command":"print","file_url":"old","data":{"file_url":"new","file_name":"n"}}`,
			want: Command{Kind: "print", Data: &PrintData{FileURL: "new", FileName: "n"}},
		},
		{
			name: "control command",
			in:   `{"command":"cancel"}`,
			want: Command{Kind: "cancel"},
		},
		{
			name: "unknown fields ignored",
			in:   `{"command":"calibrate","id":17,"data":{"axis":"z"}}`,
			want: Command{Kind: "calibrate", Data: &PrintData{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Command
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommand_UnmarshalRejectsNonObject(t *testing.T) {
	var got Command
	assert.Error(t, json.Unmarshal([]byte(`"pause"`), &got))
}

func TestDeviceEvent_Envelope(t *testing.T) {
	env := DeviceEvent{Name: "PrintDone", Payload: json.RawMessage(`{"time":12.5}`)}.Envelope()
	assert.Equal(t, "PrintDone", env.EventType)
	assert.Equal(t, json.RawMessage(`{"time":12.5}`), env.Data)

	empty := DeviceEvent{Name: "PrintStarted"}.Envelope()
	assert.Nil(t, empty.Data)
}
