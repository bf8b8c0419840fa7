package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	cfg := config.MQTTConfig{Enabled: true, QoS: 1}
	cfg.Broker.Host = "localhost"
	cfg.Broker.Port = 1883
	cfg.Broker.ClientID = "order-relay-test"
	cfg.Auth.Username = "relay"
	cfg.Auth.Password = "secret"
	cfg.Reconnect.InitialDelay = 1
	cfg.Reconnect.MaxDelay = 30
	return cfg
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"machine command", topics.MachineCommand("coffee-machine"), "orderrelay/command/machine/coffee-machine"},
		{"machine ack", topics.MachineAck("coffee-machine"), "orderrelay/ack/machine/coffee-machine"},
		{"machine status", topics.MachineStatus("grinder-01"), "orderrelay/status/machine/grinder-01"},
		{"system status", topics.SystemStatus(), "orderrelay/system/status"},
		{"all machine acks", topics.AllMachineAcks(), "orderrelay/ack/machine/+"},
		{"all machine status", topics.AllMachineStatus(), "orderrelay/status/machine/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"valid topic", "orderrelay/command/machine/coffee-machine", false},
		{"empty topic", "", true},
		{"single level wildcard", "orderrelay/+/status", true},
		{"multi level wildcard", "orderrelay/#", true},
		{"null character", "orderrelay/bad\x00topic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("error should wrap ErrInvalidTopic, got %v", err)
			}
		})
	}
}

func TestValidateSubscribeTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"exact topic", "orderrelay/ack/machine/coffee-machine", false},
		{"single level wildcard", "orderrelay/ack/machine/+", false},
		{"multi level wildcard", "orderrelay/#", false},
		{"bare multi wildcard", "#", false},
		{"empty topic", "", true},
		{"hash not last", "orderrelay/#/status", true},
		{"hash embedded in level", "orderrelay/ack#", true},
		{"plus embedded in level", "orderrelay/ack+/machine", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSubscribeTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSubscribeTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantReason string
	}{
		{"online", buildOnlinePayload("relay-1"), "online", ""},
		{"graceful offline", buildOfflinePayload("relay-1"), "offline", "graceful_shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var parsed struct {
				Status    string `json:"status"`
				ClientID  string `json:"client_id"`
				Reason    string `json:"reason"`
				Timestamp string `json:"timestamp"`
			}
			if err := json.Unmarshal([]byte(tt.payload), &parsed); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if parsed.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", parsed.Status, tt.wantStatus)
			}
			if parsed.ClientID != "relay-1" {
				t.Errorf("client_id = %q, want relay-1", parsed.ClientID)
			}
			if parsed.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", parsed.Reason, tt.wantReason)
			}
			if parsed.Timestamp == "" {
				t.Error("timestamp should be set")
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testMQTTConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("broker URL = %q, want tcp://localhost:1883", got)
	}
	if opts.ClientID != "order-relay-test" {
		t.Errorf("client ID = %q, want order-relay-test", opts.ClientID)
	}
	if opts.Username != "relay" {
		t.Errorf("username = %q, want relay", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect should be enabled")
	}
	if !opts.CleanSession {
		t.Error("clean session should be enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLS config should be set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testMQTTConfig())
	configureLWT(opts, "order-relay-test")

	if !opts.WillEnabled {
		t.Fatal("will should be enabled")
	}
	if opts.WillTopic != "orderrelay/system/status" {
		t.Errorf("will topic = %q, want orderrelay/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("will should be retained")
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload should mention unexpected_disconnect, got %s", opts.WillPayload)
	}
}
