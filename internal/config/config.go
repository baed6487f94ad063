// Package config holds the broker node's cluster configuration: one YAML
// file covering the shared-subscription dispatch options plus the TLS, JWT,
// storage, and placement settings the surrounding node process needs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/shareleaderd/broker/internal/dispatch"
	"github.com/shareleaderd/broker/internal/durationutil"
)

// TLS holds the listener's certificate material.
type TLS struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// JWT configures token issuance and validation for the admin surface. TTL
// uses Expiry rather than a bare Duration so "never" and "server_default"
// are spellable alongside a concrete lifetime.
type JWT struct {
	Secret   string              `yaml:"secret"`
	Issuer   string              `yaml:"issuer"`
	Audience string              `yaml:"audience"`
	TTL      durationutil.Expiry `yaml:"ttl"`
}

// Storage configures the durable log store.
type Storage struct {
	PebbleDir string `yaml:"pebble_dir"`
}

// Placement configures the placement-center client.
type Placement struct {
	Target       string                `yaml:"target"`
	NodeID       string                `yaml:"node_id"`
	PollInterval durationutil.Duration `yaml:"poll_interval"`
}

// Cluster is the broker node's full configuration, matching the recognized
// option set of the cluster-side shared-subscription config block.
type Cluster struct {
	Strategy            string                `yaml:"shared_subscription_strategy"`
	AckTimeout          durationutil.Duration `yaml:"ack_timeout"`
	IdleBackoff         durationutil.Duration `yaml:"idle_backoff"`
	MembershipRefresh   durationutil.Duration `yaml:"membership_refresh"`
	GCInterval          durationutil.Duration `yaml:"gc_interval"`
	MaxDeliveryAttempts int                   `yaml:"max_attempts"`
	BatchSizeMultiplier int                   `yaml:"batch_size_multiplier"`
	MaxQoS              uint8                 `yaml:"max_qos"`
	AdminListenAddr     string                `yaml:"admin_listen_addr"`

	TLS       TLS       `yaml:"tls"`
	JWT       JWT       `yaml:"jwt"`
	Storage   Storage   `yaml:"storage"`
	Placement Placement `yaml:"placement"`
}

// Default returns a Cluster with the same fallback values
// dispatch.defaultOptions uses, so an empty/partial config file still
// produces a runnable node.
func Default() Cluster {
	return Cluster{
		Strategy:            "round_robin",
		AckTimeout:          durationutil.NewDuration(30 * time.Second),
		IdleBackoff:         durationutil.NewDuration(500 * time.Millisecond),
		MembershipRefresh:   durationutil.NewDuration(5 * time.Second),
		GCInterval:          durationutil.NewDuration(time.Second),
		MaxDeliveryAttempts: 8,
		BatchSizeMultiplier: 5,
		MaxQoS:              2,
		AdminListenAddr:     ":9080",
		JWT:                 JWT{TTL: durationutil.Expiry{Kind: durationutil.ServerDefault}},
	}
}

// Load reads and parses a Cluster configuration from path.
func Load(path string) (Cluster, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Cluster{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Cluster{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// DispatchOptions translates the config's dispatch-relevant fields into
// functional options for dispatch.NewSupervisor.
func (c Cluster) DispatchOptions() ([]dispatch.Option, error) {
	strategy, ok := dispatch.ParseStrategy(c.Strategy)
	if !ok {
		return nil, fmt.Errorf("config: unknown strategy %q", c.Strategy)
	}
	return []dispatch.Option{
		dispatch.WithStrategy(strategy),
		dispatch.WithAckTimeout(c.AckTimeout.Value),
		dispatch.WithIdleBackoff(c.IdleBackoff.Value),
		dispatch.WithMembershipRefresh(c.MembershipRefresh.Value),
		dispatch.WithGCInterval(c.GCInterval.Value),
		dispatch.WithMaxAttempts(c.MaxDeliveryAttempts),
		dispatch.WithBatchSizeMultiplier(c.BatchSizeMultiplier),
		dispatch.WithMaxQoS(c.MaxQoS),
	}, nil
}
