package router

import (
	"testing"

	"github.com/shareleaderd/broker/internal/model"
	"github.com/shareleaderd/broker/internal/packets"
)

type stubSink struct {
	protocol model.Protocol
	sent     []packets.Packet
}

func (s *stubSink) Protocol() model.Protocol { return s.protocol }
func (s *stubSink) Send(pkt packets.Packet) error {
	s.sent = append(s.sent, pkt)
	return nil
}

func TestSendToAttachedConnection(t *testing.T) {
	r := New()
	sink := &stubSink{protocol: model.ProtocolV50}
	r.Attach("c1", sink)

	pkt := &packets.PublishPacket{Topic: "t"}
	if err := r.Send("c1", pkt); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected 1 sent packet, got %d", len(sink.sent))
	}
}

func TestSendToUnknownConnectionReturnsNoConnection(t *testing.T) {
	r := New()
	if err := r.Send("ghost", &packets.PublishPacket{}); err != model.ErrNoConnection {
		t.Fatalf("expected ErrNoConnection, got %v", err)
	}
}

func TestDetachRemovesSink(t *testing.T) {
	r := New()
	r.Attach("c1", &stubSink{protocol: model.ProtocolV311})
	r.Detach("c1")
	if err := r.Send("c1", &packets.PublishPacket{}); err != model.ErrNoConnection {
		t.Fatalf("expected ErrNoConnection after detach, got %v", err)
	}
}

func TestProtocolOf(t *testing.T) {
	r := New()
	r.Attach("c1", &stubSink{protocol: model.ProtocolV50})

	proto, ok := r.ProtocolOf("c1")
	if !ok || proto != model.ProtocolV50 {
		t.Fatalf("expected (v5, true), got (%v, %v)", proto, ok)
	}

	if _, ok := r.ProtocolOf("ghost"); ok {
		t.Fatal("expected false for unattached connection")
	}
}
