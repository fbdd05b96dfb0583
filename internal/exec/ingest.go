package exec

import (
	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/topics"
	"github.com/skylark-uav/skylark/pkg/log"
)

// Ingestor is the telemetry ingestion path: the sole writer of the health
// topic store. It drains the link's inbound queue once per Exec tick and
// folds every message into topics, keeping version comparison sound for all
// readers in both machines.
type Ingestor struct {
	link   link.Link
	topics *topics.Store
	logger log.Logger

	connKnown bool
	connected bool
}

// NewIngestor wires the ingestion path to its link and store.
func NewIngestor(l link.Link, store *topics.Store, logger log.Logger) *Ingestor {
	return &Ingestor{link: l, topics: store, logger: logger}
}

// Drain folds the link's connection state and all pending inbound messages
// into the topic store. Non-blocking.
func (in *Ingestor) Drain() {
	up := in.link.Connected()
	if !in.connKnown || up != in.connected {
		in.connKnown = true
		in.connected = up
		in.topics.Put(topics.KeyConnectionState, up)
		in.logger.Info("Link connection state changed", "connected", up)
	}

	for _, msg := range in.link.Poll() {
		in.fold(msg)
	}
}

func (in *Ingestor) fold(msg link.Message) {
	switch msg.Type {
	case link.MessageHeartbeat:
		prev := 0.0
		if e, ok := in.topics.Get(topics.KeyHeartbeat); ok {
			prev, _ = e.Float64()
		}
		in.topics.Put(topics.KeyHeartbeat, prev+1)
		in.topics.Put(topics.KeyArmState, msg.Armed)
		in.topics.Put(topics.KeyMode, msg.Mode)

	case link.MessageSysStatus:
		in.topics.Put(topics.KeyBatteryLevel, msg.BatteryRemaining)
		in.topics.Put(topics.KeyCommErrors, msg.CommErrors)

	case link.MessageEkfStatus:
		in.topics.Put(topics.KeyEkfFlags, msg.EkfFlags)

	case link.MessagePosition:
		if msg.Position != nil {
			in.topics.Put(topics.KeyPosition, *msg.Position)
		}
		in.topics.Put(topics.KeyAltitude, msg.RelativeAlt)
		in.topics.Put(topics.KeyClimbRate, msg.ClimbRate)

	case link.MessageStartAuto:
		in.topics.Put(topics.KeyStartAuto, true)

	case link.MessageLandRequest:
		in.topics.Put(topics.KeyLandRequest, true)

	default:
		in.logger.Debug("Dropping message of unknown type", "type", string(msg.Type))
	}
}
