package mqtt

import "testing"

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		topic  string
		want   bool
	}{
		{"exact", "skylark/v1/telemetry/heartbeat", "skylark/v1/telemetry/heartbeat", true},
		{"exact mismatch", "skylark/v1/telemetry/heartbeat", "skylark/v1/telemetry/battery", false},
		{"single-level wildcard", "skylark/v1/telemetry/+", "skylark/v1/telemetry/heartbeat", true},
		{"single-level too deep", "skylark/v1/telemetry/+", "skylark/v1/telemetry/a/b", false},
		{"multi-level wildcard", "skylark/v1/#", "skylark/v1/telemetry/a/b", true},
		{"hash at root", "#", "anything/at/all", true},
		{"plus in middle", "skylark/+/telemetry/heartbeat", "skylark/v1/telemetry/heartbeat", true},
		{"filter longer than topic", "a/b/c", "a/b", false},
		{"topic longer than filter", "a/b", "a/b/c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topicsMatch(tt.filter, tt.topic); got != tt.want {
				t.Errorf("topicsMatch(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestTopicFilterSharedSubscription(t *testing.T) {
	if got := topicFilter("$share/ground/skylark/v1/command/+"); got != "skylark/v1/command/+" {
		t.Errorf("unexpected filter: %q", got)
	}
	if got := topicFilter("skylark/v1/command/+"); got != "skylark/v1/command/+" {
		t.Errorf("filter should pass through unchanged, got %q", got)
	}
}

func TestClientConfigValidate(t *testing.T) {
	cfg := &ClientConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty broker URL")
	}

	cfg.BrokerURL = "tcp://127.0.0.1:1883"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
