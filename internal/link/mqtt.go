package link

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/skylark-uav/skylark/internal/pkg/metrics"
	"github.com/skylark-uav/skylark/internal/pkg/mqtt/paths"
	"github.com/skylark-uav/skylark/pkg/log"
	"github.com/skylark-uav/skylark/pkg/mqtt"
)

// inboundTopics maps the telemetry/command subtopics to message types.
var inboundTopics = map[string]MessageType{
	paths.Telemetry + "/heartbeat":  MessageHeartbeat,
	paths.Telemetry + "/sys_status": MessageSysStatus,
	paths.Telemetry + "/ekf_status": MessageEkfStatus,
	paths.Telemetry + "/position":   MessagePosition,
	paths.Command + "/start-auto":   MessageStartAuto,
	paths.Command + "/land-request": MessageLandRequest,
}

// Mqtt is the production Link: MAVLink-shaped JSON telemetry and commands
// over an MQTT broker, using the project MQTT client.
type Mqtt struct {
	client mqtt.Client
	root   string
	logger log.Logger

	mu      sync.Mutex
	inbound []Message

	// sendMu serializes outbound publishes so concurrently ticking tasks
	// cannot interleave command sequences.
	sendMu sync.Mutex
}

var _ Link = (*Mqtt)(nil)

// NewMqtt wraps an MQTT client as a Link. root is the topic prefix.
func NewMqtt(client mqtt.Client, root string) *Mqtt {
	return &Mqtt{
		client: client,
		root:   root,
		logger: log.WithName("link"),
	}
}

func (l *Mqtt) topic(segment string) string {
	return fmt.Sprintf("%s/%s", l.root, segment)
}

func (l *Mqtt) Start(ctx context.Context) error {
	if err := l.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}

	for sub, msgType := range inboundTopics {
		mt := msgType
		err := l.client.Subscribe(ctx, l.topic(sub), 1, func(_ context.Context, topic string, payload []byte) {
			l.receive(mt, topic, payload)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub, err)
		}
	}
	return nil
}

func (l *Mqtt) receive(msgType MessageType, topic string, payload []byte) {
	var msg Message
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			l.logger.Warn("Dropping malformed inbound payload", "topic", topic, "error", err.Error())
			return
		}
	}
	msg.Type = msgType

	l.mu.Lock()
	l.inbound = append(l.inbound, msg)
	l.mu.Unlock()
}

func (l *Mqtt) Connected() bool {
	return l.client.IsConnected()
}

func (l *Mqtt) Send(ctx context.Context, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command %s: %w", cmd.Type, err)
	}

	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if err := l.client.Publish(ctx, l.topic(paths.Send), 1, false, payload); err != nil {
		metrics.CommandsSentTotal.WithLabelValues(string(cmd.Type), "failed").Inc()
		return fmt.Errorf("publish command %s: %w", cmd.Type, err)
	}
	metrics.CommandsSentTotal.WithLabelValues(string(cmd.Type), "success").Inc()
	return nil
}

func (l *Mqtt) Poll() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.inbound
	l.inbound = nil
	return out
}

func (l *Mqtt) Close(ctx context.Context) error {
	l.client.Disconnect(ctx)
	return nil
}
