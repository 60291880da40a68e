package dts

import "strings"

// VerifyChain replays digest linkage over an ordered export of
// serialized entries. It returns true for an empty export (vacuously
// valid) and false as soon as any entry is malformed or its declared
// previous_hash does not equal the chain_hash of its predecessor (the
// genesis digest for the first entry). This detects deletion,
// insertion, and reordering.
//
// VerifyChain checks linkage between declared digest fields only; it
// does not recompute chain_hash from each entry's payload, so an
// adversary who rewrites a message AND consistently rewrites every
// subsequent digest pair will pass. Use VerifyChainStrict to close that
// gap. The linkage-only walk is kept as the documented default.
//
// Verification is stateless and read-only; it may run concurrently and
// repeatedly without coordination.
func VerifyChain(entries []string) bool {
	expected := GenesisDigest().Hex()
	for _, raw := range entries {
		prev, ok := extractHexField(raw, "previous_hash")
		if !ok {
			return false
		}
		cur, ok := extractHexField(raw, "chain_hash")
		if !ok {
			return false
		}
		if prev != expected {
			return false
		}
		expected = cur
	}
	return true
}

// VerifyChainStrict is VerifyChain plus payload recomputation: each
// entry is strictly decoded and its chain_hash recomputed from the
// decoded fields and compared against the declared value. This also
// detects in-place message tampering.
func VerifyChainStrict(entries []string) bool {
	expected := GenesisDigest().Hex()
	for _, raw := range entries {
		e, err := DecodeEntry(raw)
		if err != nil {
			return false
		}
		if e.PreviousHash != expected {
			return false
		}
		if Sum256([]byte(e.payload())).Hex() != e.ChainHash {
			return false
		}
		expected = e.ChainHash
	}
	return true
}

// VerifyResult carries diagnostic detail for callers that need to know
// where a chain broke, such as the collector's verify endpoint. The
// core VerifyChain operations deliberately return only a boolean.
type VerifyResult struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entries_checked"`
	BrokenAt       int    `json:"broken_at"`
	ExpectedHash   string `json:"expected_hash,omitempty"`
	ActualHash     string `json:"actual_hash,omitempty"`
}

// InspectChain walks the export like VerifyChain (or VerifyChainStrict
// when strict is set) and reports where verification failed.
func InspectChain(entries []string, strict bool) VerifyResult {
	expected := GenesisDigest().Hex()
	for i, raw := range entries {
		var prev, cur string
		if strict {
			e, err := DecodeEntry(raw)
			if err != nil {
				return VerifyResult{EntriesChecked: i + 1, BrokenAt: i}
			}
			prev, cur = e.PreviousHash, e.ChainHash
			if recomputed := Sum256([]byte(e.payload())).Hex(); recomputed != cur {
				return VerifyResult{
					EntriesChecked: i + 1,
					BrokenAt:       i,
					ExpectedHash:   recomputed,
					ActualHash:     cur,
				}
			}
		} else {
			var ok bool
			if prev, ok = extractHexField(raw, "previous_hash"); !ok {
				return VerifyResult{EntriesChecked: i + 1, BrokenAt: i}
			}
			if cur, ok = extractHexField(raw, "chain_hash"); !ok {
				return VerifyResult{EntriesChecked: i + 1, BrokenAt: i}
			}
		}
		if prev != expected {
			return VerifyResult{
				EntriesChecked: i + 1,
				BrokenAt:       i,
				ExpectedHash:   expected,
				ActualHash:     prev,
			}
		}
		expected = cur
	}
	return VerifyResult{Valid: true, EntriesChecked: len(entries)}
}

// extractHexField pulls a declared digest field out of a serialized
// entry without a general parser. The value must be exactly 64
// lowercase hex characters followed by the closing quote; anything else
// is a verification failure, never silently defaulted.
func extractHexField(raw, key string) (string, bool) {
	marker := `"` + key + `":"`
	i := strings.Index(raw, marker)
	if i < 0 {
		return "", false
	}
	start := i + len(marker)
	end := start + DigestSize*2
	if end >= len(raw) || raw[end] != '"' {
		return "", false
	}
	v := raw[start:end]
	if _, err := ParseDigest(v); err != nil {
		return "", false
	}
	return v, true
}
