package id

import (
	"sync"
	"sync/atomic"
	"time"
)

// SessionAllocator hands out unique SessionIDs.
type SessionAllocator interface {
	// Next returns a session id never returned before by this allocator.
	Next() SessionID
}

// CounterAllocator allocates sequential session ids starting at 1.
// Sufficient for single-node deployments.
type CounterAllocator struct {
	counter atomic.Uint64
}

// NewCounterAllocator creates a CounterAllocator.
func NewCounterAllocator() *CounterAllocator {
	return &CounterAllocator{}
}

// Next returns the next sequential session id.
func (a *CounterAllocator) Next() SessionID {
	return SessionID(a.counter.Add(1))
}

// Snowflake bit layout: [16 bits gateway | 32 bits unix seconds | 16 bits sequence].
const (
	snowflakeSecondBits   = 32
	snowflakeSequenceBits = 16
	snowflakeMaxSequence  = (1 << snowflakeSequenceBits) - 1
	snowflakeSecondMask   = (1 << snowflakeSecondBits) - 1
)

// SnowflakeAllocator allocates session ids that are unique across gateways
// without coordination. Within one second it hands out up to 65536 ids; on
// sequence exhaustion it waits for the clock to advance. The second field is
// monotonic: a wall-clock rollback never reissues an earlier second.
type SnowflakeAllocator struct {
	gatewayID uint16
	now       func() time.Time
	sleep     func(time.Duration)

	mu       sync.Mutex
	lastSec  int64
	sequence uint32
}

// NewSnowflakeAllocator creates an allocator for the given gateway id.
//
// Postcondition: Returns a ready allocator using the wall clock.
func NewSnowflakeAllocator(gatewayID uint16) *SnowflakeAllocator {
	return &SnowflakeAllocator{
		gatewayID: gatewayID,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// newSnowflakeAllocatorWithClock exists for deterministic tests.
func newSnowflakeAllocatorWithClock(gatewayID uint16, now func() time.Time, sleep func(time.Duration)) *SnowflakeAllocator {
	return &SnowflakeAllocator{gatewayID: gatewayID, now: now, sleep: sleep}
}

// Next returns the next snowflake session id.
//
// Postcondition: Returned ids are strictly unique for this allocator and
// carry the gateway id in their top 16 bits.
func (a *SnowflakeAllocator) Next() SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		sec := a.now().Unix()
		if sec < a.lastSec {
			// Clock rollback: hold the monotonic floor.
			sec = a.lastSec
		}
		if sec > a.lastSec {
			a.lastSec = sec
			a.sequence = 0
		} else if a.sequence > snowflakeMaxSequence {
			// Sequence exhausted for this second; wait out the clock.
			a.sleep(time.Millisecond)
			continue
		}
		seq := a.sequence
		a.sequence++
		return composeSnowflake(a.gatewayID, a.lastSec, uint16(seq))
	}
}

// composeSnowflake packs the three snowflake fields into a SessionID.
func composeSnowflake(gateway uint16, unixSec int64, seq uint16) SessionID {
	return SessionID(uint64(gateway)<<(snowflakeSecondBits+snowflakeSequenceBits) |
		(uint64(unixSec)&snowflakeSecondMask)<<snowflakeSequenceBits |
		uint64(seq))
}

// GatewayOf extracts the gateway id from a snowflake session id.
func GatewayOf(s SessionID) uint16 {
	return uint16(uint64(s) >> (snowflakeSecondBits + snowflakeSequenceBits))
}
