package notify

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher pushes values to an MQTT topic as retained JSON messages, so
// devices that connect later still see the latest state.
type MQTTPublisher struct {
	client  publisher
	topic   string
	timeout time.Duration
	log     zerolog.Logger
}

// DialMQTT connects to broker and returns a publisher bound to topic.
func DialMQTT(broker, clientID, topic string, log zerolog.Logger) (*MQTTPublisher, func(), error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", broker).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", broker).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	closeFn := func() { client.Disconnect(250) }
	return NewMQTTPublisher(client, topic, log), closeFn, nil
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(client publisher, topic string, log zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, timeout: 5 * time.Second, log: log}
}

// Send publishes v as JSON. Failures are logged and returned; they never block
// the caller past the publish timeout.
func (p *MQTTPublisher) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(p.timeout) {
		p.log.Warn().Str("topic", p.topic).Msg("MQTT publish timed out")
		return fmt.Errorf("mqtt publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		p.log.Warn().Err(err).Str("topic", p.topic).Msg("MQTT publish failed")
		return err
	}
	return nil
}

// Forward sends every value delivered through subscribe to the broker.
// Pass a Topic's Subscribe method or any function with the same shape.
func Forward[T any](subscribe func(func(T)) Subscription, p *MQTTPublisher) Subscription {
	return subscribe(func(v T) { _ = p.Send(v) })
}
