package dispatch

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"github.com/shareleaderd/broker/internal/model"
)

// Strategy is the closed set of recipient-selection variants. It is modeled
// as a tagged enum with a single pick operation rather than an
// open-polymorphic interface, since the set of strategies is fixed.
type Strategy uint8

const (
	RoundRobin Strategy = iota
	Random
	Sticky
	Hash
	Local
)

// ParseStrategy maps a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "round_robin":
		return RoundRobin, true
	case "random":
		return Random, true
	case "sticky":
		return Sticky, true
	case "hash":
		return Hash, true
	case "local":
		return Local, true
	default:
		return 0, false
	}
}

func (s Strategy) String() string {
	switch s {
	case RoundRobin:
		return "round_robin"
	case Random:
		return "random"
	case Sticky:
		return "sticky"
	case Hash:
		return "hash"
	case Local:
		return "local"
	default:
		return "unknown"
	}
}

// stickyState carries the per-worker state the sticky strategy needs across
// picks: the currently favored member and how many consecutive delivery
// failures it has accrued.
type stickyState struct {
	currentClientID string
	failureCount    int
}

// stickyFailureThreshold is how many consecutive failures a sticky pick
// tolerates before the worker abandons it in favor of a fresh pick.
const stickyFailureThreshold = 3

// pick selects a recipient from members according to the worker's
// configured strategy. cursor is the round-robin cursor (read and advanced
// in place for RoundRobin and as the Local fallback). sticky carries
// cross-call sticky state. msg supplies the deterministic key the hash
// strategy hashes.
func pick(strategy Strategy, members []model.Subscriber, cursor *int, sticky *stickyState, msg *model.Message) (model.Subscriber, error) {
	if len(members) == 0 {
		return model.Subscriber{}, model.ErrNoMembers
	}

	switch strategy {
	case RoundRobin:
		return pickRoundRobin(members, cursor), nil

	case Random:
		return members[rand.Intn(len(members))], nil

	case Sticky:
		return pickSticky(members, sticky), nil

	case Hash:
		return pickHash(members, msg), nil

	case Local:
		return pickLocal(members, cursor), nil

	default:
		return pickRoundRobin(members, cursor), nil
	}
}

func pickRoundRobin(members []model.Subscriber, cursor *int) model.Subscriber {
	idx := *cursor % len(members)
	*cursor = *cursor + 1
	return members[idx]
}

func pickSticky(members []model.Subscriber, sticky *stickyState) model.Subscriber {
	if sticky.currentClientID != "" && sticky.failureCount < stickyFailureThreshold {
		for _, m := range members {
			if m.ClientID == sticky.currentClientID {
				return m
			}
		}
	}
	picked := members[rand.Intn(len(members))]
	sticky.currentClientID = picked.ClientID
	sticky.failureCount = 0
	return picked
}

// recordStickyFailure is called by the worker after a failed delivery
// attempt against the current sticky pick, so the next pick call can decide
// whether to keep or abandon it.
func recordStickyFailure(sticky *stickyState, failedClientID string) {
	if sticky.currentClientID == failedClientID {
		sticky.failureCount++
	}
}

func pickHash(members []model.Subscriber, msg *model.Message) model.Subscriber {
	h := xxhash.New()
	h.WriteString(msg.Topic)
	h.Write([]byte{0})
	h.Write(msg.CorrelationOrPayloadKey())
	sum := h.Sum64()
	idx := int(sum % uint64(len(members)))
	return members[idx]
}

func pickLocal(members []model.Subscriber, cursor *int) model.Subscriber {
	for _, m := range members {
		if m.IsLocal {
			return m
		}
	}
	return pickRoundRobin(members, cursor)
}
