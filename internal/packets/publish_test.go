package packets

import (
	"bytes"
	"testing"
)

func TestPublishPacketEncodeV3QoS0(t *testing.T) {
	p := &PublishPacket{
		Topic:   "a/b",
		Payload: []byte("hi"),
		Version: 4,
	}

	data, err := p.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// fixed header: type<<4|flags, remaining length
	wantRemaining := 2 + len("a/b") + len("hi")
	want := []byte{PUBLISH << 4, byte(wantRemaining)}
	want = append(want, 0, 3) // topic length
	want = append(want, "a/b"...)
	want = append(want, "hi"...)

	if !bytes.Equal(data, want) {
		t.Fatalf("encode mismatch:\n got %x\nwant %x", data, want)
	}
}

func TestPublishPacketEncodeV3QoS1IncludesPacketID(t *testing.T) {
	p := &PublishPacket{
		Topic:    "t",
		QoS:      1,
		PacketID: 42,
		Payload:  []byte("x"),
		Version:  4,
	}

	data, err := p.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	flags := byte(1 << 1)
	wantRemaining := 2 + 1 + 2 + 1 // topic len+bytes, packet id, payload
	want := []byte{PUBLISH<<4 | flags, byte(wantRemaining), 0, 1, 't', 0, 42, 'x'}

	if !bytes.Equal(data, want) {
		t.Fatalf("encode mismatch:\n got %x\nwant %x", data, want)
	}
}

func TestPublishPacketEncodeV5AppendsProperties(t *testing.T) {
	p := &PublishPacket{
		Topic:   "t",
		Payload: []byte("x"),
		Version: 5,
		Properties: &Properties{
			Presence:    PresContentType,
			ContentType: "text/plain",
		},
	}

	data, err := p.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	propsBytes := appendProperties(nil, p.Properties)
	wantRemaining := 2 + 1 + len(propsBytes) + 1
	if int(data[1]) != wantRemaining {
		t.Fatalf("remaining length = %d, want %d", data[1], wantRemaining)
	}
	if !bytes.Contains(data, propsBytes) {
		t.Fatalf("encoded packet does not contain properties bytes")
	}
}

func TestPublishPacketEncodeDupRetainFlags(t *testing.T) {
	p := &PublishPacket{
		Topic:   "t",
		Dup:     true,
		Retain:  true,
		QoS:     2,
		Version: 4,
	}

	data, err := p.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	wantFlags := byte(0x08 | (2 << 1) | 0x01)
	gotFlags := data[0] & 0x0F
	if gotFlags != wantFlags {
		t.Fatalf("flags = %08b, want %08b", gotFlags, wantFlags)
	}
}

func TestPublishPacketWriteToMatchesEncode(t *testing.T) {
	p := &PublishPacket{Topic: "t", Payload: []byte("payload"), Version: 4}

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	if err != nil {
		t.Fatalf("write to: %v", err)
	}

	want, _ := p.Encode(nil)
	if int64(len(want)) != n {
		t.Fatalf("WriteTo reported %d bytes, encode produced %d", n, len(want))
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("WriteTo output mismatch:\n got %x\nwant %x", buf.Bytes(), want)
	}
}
