// Package placement is a thin client for the cluster's placement center: it
// heartbeats this node's liveness and polls for the set of ShareLeaderKeys
// the placement center has assigned this node to lead, pushing the result
// into the Subscriber Registry. The placement center service itself, and
// leader election among nodes, are out of scope for this repo.
package placement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shareleaderd/broker/internal/model"
	"github.com/shareleaderd/broker/internal/registry"
)

const (
	serviceHeartbeat  = "/shareleaderd.placement.v1.PlacementService/Heartbeat"
	serviceGetLedKeys = "/shareleaderd.placement.v1.PlacementService/GetLedKeys"
)

// HeartbeatRequest reports this node's liveness to the placement center.
type HeartbeatRequest struct {
	NodeID string `json:"node_id"`
}

// HeartbeatResponse is the placement center's acknowledgement.
type HeartbeatResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// GetLedKeysRequest asks which ShareLeaderKeys NodeID currently leads.
type GetLedKeysRequest struct {
	NodeID string `json:"node_id"`
}

// ledKeyWire is the wire shape of a model.ShareLeaderKey.
type ledKeyWire struct {
	GroupName string `json:"group_name"`
	TopicID   string `json:"topic_id"`
}

// GetLedKeysResponse lists the keys the placement center assigned to a node.
type GetLedKeysResponse struct {
	Keys []ledKeyWire `json:"keys"`
}

// Client talks to the placement center over gRPC using a JSON wire codec.
type Client struct {
	conn   *grpc.ClientConn
	nodeID string
	log    *slog.Logger
}

// Dial connects to the placement center at target (e.g. "placement-1:9981").
func Dial(target, nodeID string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("placement: dial %s: %w", target, err)
	}
	return &Client{conn: conn, nodeID: nodeID, log: log}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Heartbeat reports liveness once.
func (c *Client) Heartbeat(ctx context.Context) error {
	req := &HeartbeatRequest{NodeID: c.nodeID}
	resp := &HeartbeatResponse{}
	if err := c.conn.Invoke(ctx, serviceHeartbeat, req, resp); err != nil {
		return fmt.Errorf("placement: heartbeat: %w", err)
	}
	return nil
}

// GetLedKeys fetches the current leadership assignment for this node.
func (c *Client) GetLedKeys(ctx context.Context) ([]model.ShareLeaderKey, error) {
	req := &GetLedKeysRequest{NodeID: c.nodeID}
	resp := &GetLedKeysResponse{}
	if err := c.conn.Invoke(ctx, serviceGetLedKeys, req, resp); err != nil {
		return nil, fmt.Errorf("placement: get led keys: %w", err)
	}
	keys := make([]model.ShareLeaderKey, 0, len(resp.Keys))
	for _, k := range resp.Keys {
		keys = append(keys, model.ShareLeaderKey{GroupName: k.GroupName, TopicID: k.TopicID})
	}
	return keys, nil
}

// Poll heartbeats and refreshes reg's led-key set every interval until ctx is
// cancelled. Transient errors are logged and retried on the next tick rather
// than treated as fatal, since the placement center is expected to flap
// independently of this node's own health.
func (c *Client) Poll(ctx context.Context, reg *registry.Memory, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(ctx); err != nil {
				c.log.Warn("placement heartbeat failed", "error", err)
				continue
			}
			keys, err := c.GetLedKeys(ctx)
			if err != nil {
				c.log.Warn("placement get_led_keys failed", "error", err)
				continue
			}
			reg.SetLedKeys(keys)
		}
	}
}
