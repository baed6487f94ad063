package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
shared_subscription_strategy: sticky
ack_timeout: 10s
idle_backoff: 50ms
max_attempts: 3
max_qos: 1
admin_listen_addr: ":8088"
jwt:
  secret: hunter2
  issuer: test
  audience: admin
  ttl: 12h
storage:
  pebble_dir: /var/lib/broker
placement:
  target: placement-1:9981
  node_id: node-7
  poll_interval: 2s
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Strategy != "sticky" {
		t.Errorf("strategy = %q", c.Strategy)
	}
	if c.AckTimeout.Value != 10*time.Second {
		t.Errorf("ack_timeout = %v", c.AckTimeout)
	}
	if c.IdleBackoff.Value != 50*time.Millisecond {
		t.Errorf("idle_backoff = %v", c.IdleBackoff)
	}
	if c.MaxDeliveryAttempts != 3 {
		t.Errorf("max_attempts = %d", c.MaxDeliveryAttempts)
	}
	if c.MaxQoS != 1 {
		t.Errorf("max_qos = %d", c.MaxQoS)
	}
	if c.JWT.Secret != "hunter2" {
		t.Errorf("jwt secret = %q", c.JWT.Secret)
	}
	if c.Storage.PebbleDir != "/var/lib/broker" {
		t.Errorf("pebble_dir = %q", c.Storage.PebbleDir)
	}
	if c.Placement.NodeID != "node-7" || c.Placement.PollInterval.Value != 2*time.Second {
		t.Errorf("placement = %+v", c.Placement)
	}

	// Fields absent from the file keep their defaults.
	if c.MembershipRefresh.Value != 5*time.Second {
		t.Errorf("membership_refresh default = %v", c.MembershipRefresh)
	}
	if c.BatchSizeMultiplier != 5 {
		t.Errorf("batch_size_multiplier default = %d", c.BatchSizeMultiplier)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDispatchOptionsRejectsUnknownStrategy(t *testing.T) {
	c := Default()
	c.Strategy = "fastest"
	if _, err := c.DispatchOptions(); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestDispatchOptionsFromDefaults(t *testing.T) {
	opts, err := Default().DispatchOptions()
	if err != nil {
		t.Fatalf("dispatch options: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("expected a non-empty option set")
	}
}
