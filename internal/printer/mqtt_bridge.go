package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/internal/constants"
	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/internal/utils"
	"github.com/gofab/printq-agent/pkg/mqtt"
)

// ErrPublishTimeout is returned when the broker did not acknowledge a command in time.
var ErrPublishTimeout = errors.New("timed out publishing printer command")

// selectRequest is published to ask the host to load and print a file.
type selectRequest struct {
	Path             string `json:"path"`
	PrintAfterSelect bool   `json:"print_after_select"`
}

// MQTTBridge talks to the host printer controller over MQTT.
//
// The host publishes status fragments under <prefix>/state/<key> (retained, JSON) and lifecycle
// events under <prefix>/event/<name>. Commands are published to <prefix>/command/<verb>.
type MQTTBridge struct {
	topicPrefix    string
	qos            int
	publishTimeout time.Duration

	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger

	state    cmap.ConcurrentMap[string, json.RawMessage]
	handlers []EventHandler
	pool     *utils.WorkerPool

	mu      sync.Mutex
	running bool
}

// NewMQTTBridge initializes a new MQTTBridge.
func NewMQTTBridge(topicPrefix string, qos int, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTBridge {
	return &MQTTBridge{
		topicPrefix:    strings.TrimRight(topicPrefix, "/"),
		qos:            qos,
		publishTimeout: constants.DefaultPublishTimeout,
		mqttClient:     mqttClient,
		logger:         logger,
		state:          cmap.New[json.RawMessage](),
	}
}

// SetPublishTimeout overrides how long a command publish may wait for the broker.
func (b *MQTTBridge) SetPublishTimeout(d time.Duration) {
	b.publishTimeout = d
}

// OnEvent registers a lifecycle event handler.
func (b *MQTTBridge) OnEvent(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Start subscribes to the state and event topics.
func (b *MQTTBridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.logger.Warn().Msg("MQTTBridge is already running")
		return errors.New("mqtt bridge is already running")
	}

	// One worker keeps events in emission order without blocking the MQTT router.
	b.pool = utils.NewWorkerPool(1, constants.DefaultEventQueueSize)

	for topic, handler := range map[string]MQTT.MessageHandler{
		b.topic(constants.TopicState, "+"): b.handleState,
		b.topic(constants.TopicEvent, "+"): b.handleEvent,
	} {
		token := b.mqttClient.Subscribe(topic, byte(b.qos), handler)
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
			b.pool.Shutdown()
			return err
		}
		b.logger.Info().Str("topic", topic).Msg("Subscribed to MQTT topic")
	}

	b.running = true
	b.logger.Info().Str("prefix", b.topicPrefix).Msg("MQTTBridge started successfully")
	return nil
}

// Stop unsubscribes and waits for queued events to be handled.
func (b *MQTTBridge) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return errors.New("mqtt bridge is not running")
	}
	b.running = false
	b.mu.Unlock()

	token := b.mqttClient.Unsubscribe(b.topic(constants.TopicState, "+"), b.topic(constants.TopicEvent, "+"))
	token.Wait()
	err := token.Error()
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to unsubscribe from MQTT topics")
	}

	b.pool.Shutdown()
	b.logger.Info().Msg("MQTTBridge stopped successfully")
	return err
}

// GetCurrentStatus assembles the latest status fragments published by the host.
func (b *MQTTBridge) GetCurrentStatus(ctx context.Context) (models.StatusSnapshot, error) {
	snapshot := make(models.StatusSnapshot, b.state.Count())
	for key, value := range b.state.Items() {
		snapshot[key] = value
	}
	return snapshot, ctx.Err()
}

// SelectAndPrint asks the host to select path and print it right after.
func (b *MQTTBridge) SelectAndPrint(ctx context.Context, path string) error {
	return b.publishCommand(ctx, constants.CommandSelect, selectRequest{Path: path, PrintAfterSelect: true})
}

// Cancel asks the host to cancel the current job.
func (b *MQTTBridge) Cancel(ctx context.Context) error {
	return b.publishCommand(ctx, constants.CommandCancel, struct{}{})
}

// Pause asks the host to pause the current job.
func (b *MQTTBridge) Pause(ctx context.Context) error {
	return b.publishCommand(ctx, constants.CommandPause, struct{}{})
}

// Resume asks the host to resume the current job.
func (b *MQTTBridge) Resume(ctx context.Context) error {
	return b.publishCommand(ctx, constants.CommandResume, struct{}{})
}

func (b *MQTTBridge) publishCommand(ctx context.Context, verb string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to serialize %s command: %w", verb, err)
	}

	topic := b.topic(constants.TopicCommand, verb)
	token := b.mqttClient.Publish(topic, byte(b.qos), false, payload)

	timer := time.NewTimer(b.publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	b.logger.Debug().Str("topic", topic).RawJSON("payload", payload).Msg("Printer command published")
	return nil
}

func (b *MQTTBridge) handleState(_ MQTT.Client, msg MQTT.Message) {
	key, ok := b.leaf(constants.TopicState, msg.Topic())
	if !ok {
		return
	}

	payload := msg.Payload()
	if len(payload) == 0 {
		// Empty retained message clears the fragment
		b.state.Remove(key)
		return
	}
	if !json.Valid(payload) {
		b.logger.Warn().Str("topic", msg.Topic()).Msg("Ignoring non-JSON status fragment")
		return
	}
	b.state.Set(key, json.RawMessage(append([]byte(nil), payload...)))
}

func (b *MQTTBridge) handleEvent(_ MQTT.Client, msg MQTT.Message) {
	name, ok := b.leaf(constants.TopicEvent, msg.Topic())
	if !ok {
		return
	}

	event := models.DeviceEvent{Name: name}
	if payload := msg.Payload(); len(payload) > 0 {
		if json.Valid(payload) {
			event.Payload = json.RawMessage(append([]byte(nil), payload...))
		} else {
			quoted, _ := json.Marshal(string(payload))
			event.Payload = quoted
		}
	}

	b.mu.Lock()
	handlers := append([]EventHandler(nil), b.handlers...)
	pool := b.pool
	b.mu.Unlock()

	if pool == nil {
		return
	}
	if !pool.Submit(func() {
		for _, handler := range handlers {
			handler(event)
		}
	}) {
		b.logger.Debug().Str("event", name).Msg("Bridge stopped, dropping event")
	}
}

func (b *MQTTBridge) topic(kind, leaf string) string {
	return b.topicPrefix + "/" + kind + "/" + leaf
}

// leaf extracts the last topic level below <prefix>/<kind>/.
func (b *MQTTBridge) leaf(kind, topic string) (string, bool) {
	leaf, ok := strings.CutPrefix(topic, b.topicPrefix+"/"+kind+"/")
	if !ok || leaf == "" || strings.Contains(leaf, "/") {
		return "", false
	}
	return leaf, true
}
