package printer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gofab/printq-agent/internal/mocks"
	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/internal/printer"
)

// startedBridge returns a running bridge plus the handlers it subscribed with.
func startedBridge(t *testing.T, client *mocks.MockMQTTClient) (*printer.MQTTBridge, map[string]MQTT.MessageHandler) {
	t.Helper()

	handlers := make(map[string]MQTT.MessageHandler)
	client.On("Subscribe", mock.Anything, byte(1), mock.Anything).
		Run(func(args mock.Arguments) {
			handlers[args.String(0)] = args.Get(2).(MQTT.MessageHandler)
		}).
		Return(mocks.NewDoneToken(nil))

	bridge := printer.NewMQTTBridge("printer/", 1, client, zerolog.Nop())
	require.NoError(t, bridge.Start())
	return bridge, handlers
}

func TestMQTTBridge_Start_Subscribes(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	bridge, handlers := startedBridge(t, client)

	assert.Contains(t, handlers, "printer/state/+")
	assert.Contains(t, handlers, "printer/event/+")

	err := bridge.Start()
	assert.EqualError(t, err, "mqtt bridge is already running")

	client.On("Unsubscribe", []string{"printer/state/+", "printer/event/+"}).Return(mocks.NewDoneToken(nil))
	assert.NoError(t, bridge.Stop())
	assert.EqualError(t, bridge.Stop(), "mqtt bridge is not running")
}

func TestMQTTBridge_Start_SubscribeFailure(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewDoneToken(errors.New("subscribe failed")))

	bridge := printer.NewMQTTBridge("printer", 0, client, zerolog.Nop())
	err := bridge.Start()
	assert.EqualError(t, err, "subscribe failed")
}

func TestMQTTBridge_GetCurrentStatus(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	bridge, handlers := startedBridge(t, client)
	state := handlers["printer/state/+"]

	state(nil, mocks.NewRetainedMessage("printer/state/state", []byte(`{"text":"Operational"}`)))
	state(nil, mocks.NewRetainedMessage("printer/state/temperatures", []byte(`{"tool0":{"actual":210.5}}`)))
	state(nil, mocks.NewRetainedMessage("printer/state/broken", []byte(`not json`)))
	state(nil, mocks.NewRetainedMessage("printer/state/nested/key", []byte(`{}`)))

	snapshot, err := bridge.GetCurrentStatus(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)

	encoded, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"text":"Operational"},"temperatures":{"tool0":{"actual":210.5}}}`, string(encoded))

	// An empty retained message clears the fragment
	state(nil, mocks.NewRetainedMessage("printer/state/temperatures", nil))
	snapshot, err = bridge.GetCurrentStatus(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, snapshot, "temperatures")
}

func TestMQTTBridge_EventsDeliveredInOrder(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	bridge, handlers := startedBridge(t, client)

	var mu sync.Mutex
	var got []models.DeviceEvent
	bridge.OnEvent(func(event models.DeviceEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
	})

	events := handlers["printer/event/+"]
	events(nil, mocks.NewMockMessage("printer/event/PrintStarted", []byte(`{"name":"cube.gcode"}`)))
	events(nil, mocks.NewMockMessage("printer/event/Connected", nil))
	events(nil, mocks.NewMockMessage("printer/event/PrintDone", []byte(`plain`)))

	// Stop drains the queued events
	client.On("Unsubscribe", mock.Anything).Return(mocks.NewDoneToken(nil))
	require.NoError(t, bridge.Stop())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, "PrintStarted", got[0].Name)
	assert.JSONEq(t, `{"name":"cube.gcode"}`, string(got[0].Payload))
	assert.Equal(t, "Connected", got[1].Name)
	assert.Empty(t, got[1].Payload)
	assert.Equal(t, "PrintDone", got[2].Name)
	assert.JSONEq(t, `"plain"`, string(got[2].Payload))
}

func TestMQTTBridge_SelectAndPrint(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	bridge := printer.NewMQTTBridge("printer", 1, client, zerolog.Nop())

	var payload []byte
	client.On("Publish", "printer/command/select", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(3).([]byte) }).
		Return(mocks.NewDoneToken(nil))

	err := bridge.SelectAndPrint(context.Background(), "/srv/uploads/_printq_/cube.gcode")
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/srv/uploads/_printq_/cube.gcode","print_after_select":true}`, string(payload))
	client.AssertExpectations(t)
}

func TestMQTTBridge_JobControl(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	bridge := printer.NewMQTTBridge("printer", 0, client, zerolog.Nop())

	client.On("Publish", "printer/command/cancel", byte(0), false, []byte(`{}`)).Return(mocks.NewDoneToken(nil))
	client.On("Publish", "printer/command/pause", byte(0), false, []byte(`{}`)).Return(mocks.NewDoneToken(nil))
	client.On("Publish", "printer/command/resume", byte(0), false, []byte(`{}`)).Return(mocks.NewDoneToken(errors.New("broker gone")))

	ctx := context.Background()
	assert.NoError(t, bridge.Cancel(ctx))
	assert.NoError(t, bridge.Pause(ctx))
	assert.ErrorContains(t, bridge.Resume(ctx), "broker gone")
	client.AssertExpectations(t)
}

func TestMQTTBridge_PublishTimeout(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	bridge := printer.NewMQTTBridge("printer", 0, client, zerolog.Nop())
	bridge.SetPublishTimeout(20 * time.Millisecond)

	client.On("Publish", "printer/command/pause", byte(0), false, mock.Anything).Return(mocks.NewPendingToken())

	err := bridge.Pause(context.Background())
	assert.ErrorIs(t, err, printer.ErrPublishTimeout)
}
