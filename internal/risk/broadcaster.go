package risk

import "sync"

// subscriberBuffer is the broadcast channel's per-subscriber capacity,
// matching spec.md §5's kill channel capacity of 16.
const subscriberBuffer = 16

// Broadcaster fans a KillSwitch out to every subscriber. It generalises
// the single-consumer emitKill drain-then-send pattern to multiple
// registered subscriber channels — Go's stdlib has no direct equivalent
// of a multi-consumer broadcast channel. A slow or absent subscriber is
// tolerated by dropping its oldest pending signal and resending ("lagged"
// receivers are treated as a harmless retry by the listener).
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan KillSwitch
}

// NewBroadcaster returns a ready-to-use Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a new receive-only channel. It is never closed by
// the Broadcaster — the process is expected to exit once a listener acts
// on its first signal.
func (b *Broadcaster) Subscribe() <-chan KillSwitch {
	ch := make(chan KillSwitch, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish sends k to every subscriber. Any guard may emit any number of
// signals (I4); non-blocking send with drain-oldest-on-full keeps a
// breaching guard from ever stalling on a slow listener.
func (b *Broadcaster) Publish(k KillSwitch) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- k:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- k:
			default:
			}
		}
	}
}
