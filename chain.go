// Package dts implements a tamper-evident audit chain for embedded and
// firmware devices.
//
// Each appended event is cryptographically bound to its predecessor:
// the entry digest covers the full event payload plus the digest of the
// previous entry, so deleting, reordering, or altering any past entry
// is detectable by replaying the chain over an exported sequence.
//
// The digest engine is a self-contained SHA-256 implementation; the
// chain carries no secrets. Its security property is linkage integrity,
// not confidentiality — the genesis seed is public by design.
package dts

import (
	"time"
)

// chainSeed is the fixed, publicly known initialization constant. The
// genesis digest is its SHA-256 hash.
const chainSeed = "DTS_INIT"

// GenesisDigest returns the rolling digest used before any entry has
// been appended.
func GenesisDigest() Digest {
	return Sum256([]byte(chainSeed))
}

// Chain holds per-device chain state: the device identity, the rolling
// digest of the most recently appended entry, and a monotonic sequence
// counter.
//
// A Chain is designed for exactly one concurrent writer. There is no
// internal locking; callers that need multi-writer appends must provide
// their own mutual exclusion. Verification (VerifyChain) never touches
// a live Chain and may run concurrently with anything.
type Chain struct {
	deviceID string
	prev     Digest
	seq      uint64
}

// NewChain creates chain state for one device identity. The rolling
// digest starts at the genesis digest and the sequence counter at 0.
func NewChain(deviceID string) *Chain {
	return &Chain{
		deviceID: deviceID,
		prev:     GenesisDigest(),
	}
}

// ResumeChain recreates chain state from a persisted tail: the digest
// of the last archived entry and the number of entries appended so far.
// Used to continue a device's chain across process restarts.
func ResumeChain(deviceID string, prev Digest, seq uint64) *Chain {
	return &Chain{
		deviceID: deviceID,
		prev:     prev,
		seq:      seq,
	}
}

// Append records one event and returns its serialized entry. The entry
// digest covers the device identity, the millisecond UTC timestamp, the
// actor and severity codes, the raw message, and the previous rolling
// digest. On return the rolling digest has advanced to the new entry's
// digest and the sequence counter has incremented by exactly one.
//
// Append is total: it never fails for any message content, including
// control characters, which are escaped in the serialized form. A
// logger that can fail to log defeats its purpose.
func (c *Chain) Append(message string, user UserID, severity Severity) string {
	return c.appendAt(message, user, severity, time.Now())
}

// appendAt is Append with an injected clock, for deterministic tests.
func (c *Chain) appendAt(message string, user UserID, severity Severity, now time.Time) string {
	e := Entry{
		DeviceID:     c.deviceID,
		Timestamp:    now.UTC().Format(timestampLayout),
		UserID:       user,
		Severity:     severity,
		Message:      message,
		PreviousHash: c.prev.Hex(),
	}
	sum := Sum256([]byte(e.payload()))
	e.ChainHash = sum.Hex()

	out := encodeEntry(e)

	// State advances only after the entry is fully built, so the
	// rolling digest always matches the last returned entry.
	c.prev = sum
	c.seq++
	return out
}

// DeviceID returns the device identity the chain was created with.
func (c *Chain) DeviceID() string {
	return c.deviceID
}

// ChainDigest returns the hex rendering of the rolling digest: the
// digest of the last appended entry, or the genesis digest before the
// first append. Read-only.
func (c *Chain) ChainDigest() string {
	return c.prev.Hex()
}

// SequenceNumber returns the number of entries appended through this
// chain instance. Read-only.
func (c *Chain) SequenceNumber() uint64 {
	return c.seq
}
