package durationutil

import "strings"

// ExpiryKind discriminates an Expiry's three variants.
type ExpiryKind uint8

const (
	ServerDefault ExpiryKind = iota
	ExpireAfter
	NeverExpire
)

// Expiry is either "use the server default", "expire after a Duration", or
// "never expire", used for JWT/session expiry configuration fields.
type Expiry struct {
	Kind ExpiryKind
	For  Duration // only meaningful when Kind == ExpireAfter
}

func (e Expiry) String() string {
	switch e.Kind {
	case NeverExpire:
		return "never"
	case ExpireAfter:
		return e.For.String()
	default:
		return "server_default"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Expiry) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expiry) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	switch s {
	case "", "server_default", "default":
		*e = Expiry{Kind: ServerDefault}
		return nil
	case "never", "unlimited":
		*e = Expiry{Kind: NeverExpire}
		return nil
	}
	var d Duration
	if err := d.UnmarshalText(text); err != nil {
		return err
	}
	*e = Expiry{Kind: ExpireAfter, For: d}
	return nil
}

// Add sums two Expiry values: NeverExpire absorbs anything, ServerDefault
// is treated as a zero contribution.
func (e Expiry) Add(other Expiry) Expiry {
	if e.Kind == NeverExpire || other.Kind == NeverExpire {
		return Expiry{Kind: NeverExpire}
	}
	if e.Kind == ServerDefault {
		return other
	}
	if other.Kind == ServerDefault {
		return e
	}
	return Expiry{Kind: ExpireAfter, For: e.For.Add(other.For)}
}
