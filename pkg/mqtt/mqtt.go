package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/gofab/printq-agent/pkg/file"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

type subscription struct {
	qos      byte
	callback mqtt.MessageHandler
}

// MqttService provides methods for MQTT operations. Subscriptions are remembered and
// re-established every time the client (re)connects.
type MqttService struct {
	client     mqtt.Client
	fileClient file.FileOperations
	logger     zerolog.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations, logger zerolog.Logger) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		logger:     logger,
		subs:       make(map[string]subscription),
	}
}

// Initialize sets up the MQTT client and starts the connection. TLS is used when a CA
// certificate path is given.
func (s *MqttService) Initialize(broker, clientID, caCertPath string) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(2 * time.Minute)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.logger.Info().Str("broker", broker).Msg("MQTT connected")
		s.resubscribe()
	})

	if caCertPath != "" {
		caCert, err := s.fileClient.ReadFileRaw(caCertPath)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %v", err)
		}

		// Create a CA certificate pool and append the CA certificate to it
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return fmt.Errorf("failed to append CA certificate")
		}
		opts.SetTLSConfig(&tls.Config{RootCAs: caCertPool, MinVersion: tls.VersionTLS12})
	}

	// Create and assign the MQTT client to the service
	s.client = mqtt.NewClient(opts)

	// With ConnectRetry the token only completes once connected; don't block startup on it.
	token := s.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return token.Error()
	}

	return nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler. While disconnected the
// subscription is only recorded and gets applied on the next connect.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	s.mu.Lock()
	s.subs[topic] = subscription{qos: qos, callback: callback}
	s.mu.Unlock()

	if !s.client.IsConnectionOpen() {
		return completedToken{}
	}
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	s.mu.Lock()
	for _, topic := range topics {
		delete(s.subs, topic)
	}
	s.mu.Unlock()

	if !s.client.IsConnectionOpen() {
		return completedToken{}
	}
	return s.client.Unsubscribe(topics...)
}

func (s *MqttService) resubscribe() {
	s.mu.Lock()
	subs := make(map[string]subscription, len(s.subs))
	for topic, sub := range s.subs {
		subs[topic] = sub
	}
	s.mu.Unlock()

	for topic, sub := range subs {
		token := s.client.Subscribe(topic, sub.qos, sub.callback)
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			s.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to restore MQTT subscription")
		}
	}
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
}

// completedToken is returned for operations that finish without a broker round trip.
type completedToken struct{}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (completedToken) Wait() bool { return true }

func (completedToken) WaitTimeout(time.Duration) bool { return true }

func (completedToken) Done() <-chan struct{} { return closedCh }

func (completedToken) Error() error { return nil }
