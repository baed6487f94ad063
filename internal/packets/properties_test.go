package packets

import (
	"bytes"
	"testing"
)

func TestAppendPropertiesNilYieldsZeroLength(t *testing.T) {
	got := appendProperties(nil, nil)
	want := []byte{0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestAppendPropertiesEmptyStructYieldsZeroLength(t *testing.T) {
	got := appendProperties(nil, &Properties{})
	want := []byte{0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestAppendPropertiesContentType(t *testing.T) {
	p := &Properties{Presence: PresContentType, ContentType: "application/json"}
	got := appendProperties(nil, p)

	want := []byte{byte(3 + len("application/json"))}
	want = append(want, propContentType, 0, byte(len("application/json")))
	want = append(want, "application/json"...)

	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestAppendPropertiesCorrelationDataIgnoresAbsentPresenceBit(t *testing.T) {
	// CorrelationData is emitted whenever non-empty, with no presence bit.
	p := &Properties{CorrelationData: []byte{0x01, 0x02}}
	got := appendProperties(nil, p)

	want := []byte{5, propCorrelationData, 0, 2, 0x01, 0x02}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestAppendPropertiesSubscriptionIdentifierRepeats(t *testing.T) {
	p := &Properties{SubscriptionIdentifier: []int{1, 200}}
	got := appendProperties(nil, p)

	want := []byte{4, propSubscriptionIdentifier, 1, propSubscriptionIdentifier}
	want = append(want, appendVarInt(nil, 200)...)
	want[0] = byte(len(want) - 1)

	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestAppendPropertiesUserProperties(t *testing.T) {
	p := &Properties{UserProperties: []UserProperty{{Key: "k", Value: "v"}}}
	got := appendProperties(nil, p)

	want := []byte{7, propUserProperty, 0, 1, 'k', 0, 1, 'v'}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestAppendPropertiesLengthPrefixGrowsPast127Bytes(t *testing.T) {
	longValue := make([]byte, 200)
	for i := range longValue {
		longValue[i] = 'a'
	}
	p := &Properties{CorrelationData: longValue}
	got := appendProperties(nil, p)

	propLen := 1 + 2 + len(longValue) // id byte + length prefix + data
	lenPrefix := appendVarInt(nil, propLen)
	if len(lenPrefix) < 2 {
		t.Fatalf("test setup: expected multi-byte length prefix, got %d bytes", len(lenPrefix))
	}
	if !bytes.Equal(got[:len(lenPrefix)], lenPrefix) {
		t.Fatalf("length prefix = %x, want %x", got[:len(lenPrefix)], lenPrefix)
	}
	if got[len(lenPrefix)] != propCorrelationData {
		t.Fatalf("expected property id right after length prefix")
	}
}

func TestEncodePropertiesNilMatchesAppendProperties(t *testing.T) {
	if !bytes.Equal(encodeProperties(nil), appendProperties(nil, nil)) {
		t.Fatal("encodeProperties(nil) should match appendProperties(nil, nil)")
	}
}
