package dts

import (
	"encoding/json"
	"strings"
	"testing"
)

func buildChain(t *testing.T, deviceID string, n int) []string {
	t.Helper()
	chain := NewChain(deviceID)
	entries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, chain.Append("event", UserSystem, SeverityInfo))
	}
	return entries
}

func TestVerifyChain_Valid(t *testing.T) {
	for _, n := range []int{0, 1, 2, 25} {
		entries := buildChain(t, "DEV-1", n)
		if !VerifyChain(entries) {
			t.Errorf("valid %d-entry chain rejected", n)
		}
		if !VerifyChainStrict(entries) {
			t.Errorf("valid %d-entry chain rejected by strict walk", n)
		}
	}
}

func TestVerifyChain_Deletion(t *testing.T) {
	entries := buildChain(t, "DEV-1", 5)

	// Removing any interior entry breaks the linkage that follows it.
	for i := 0; i < 4; i++ {
		mutated := append(append([]string(nil), entries[:i]...), entries[i+1:]...)
		if VerifyChain(mutated) {
			t.Errorf("deletion of entry %d went undetected", i)
		}
	}

	// Truncating the tail is not detectable by replay alone; the
	// remaining prefix is a valid chain.
	if !VerifyChain(entries[:4]) {
		t.Error("truncated prefix should still verify")
	}
}

func TestVerifyChain_Reorder(t *testing.T) {
	entries := buildChain(t, "DEV-1", 4)
	mutated := append([]string(nil), entries...)
	mutated[1], mutated[2] = mutated[2], mutated[1]
	if VerifyChain(mutated) {
		t.Error("reordered chain went undetected")
	}
}

func TestVerifyChain_DigestTamper(t *testing.T) {
	entries := buildChain(t, "DEV-1", 3)

	e, err := DecodeEntry(entries[1])
	if err != nil {
		t.Fatal(err)
	}
	flip := func(s string) string {
		if s[0] == 'a' {
			return "b" + s[1:]
		}
		return "a" + s[1:]
	}

	tampered := append([]string(nil), entries...)
	tampered[1] = strings.Replace(entries[1], e.ChainHash, flip(e.ChainHash), 1)
	if VerifyChain(tampered) {
		t.Error("chain_hash edit went undetected")
	}

	tampered = append([]string(nil), entries...)
	tampered[1] = strings.Replace(entries[1], `"previous_hash":"`+e.PreviousHash,
		`"previous_hash":"`+flip(e.PreviousHash), 1)
	if VerifyChain(tampered) {
		t.Error("previous_hash edit went undetected")
	}
}

func TestVerifyChain_MalformedEntry(t *testing.T) {
	entries := buildChain(t, "DEV-1", 3)
	cases := [][]string{
		{"garbage"},
		{entries[0], "{}", entries[2]},
		{strings.Replace(entries[0], `"previous_hash":"87`, `"previous_hash":"XY`, 1)},
		{entries[0][:len(entries[0])-10]},
	}
	for i, c := range cases {
		if VerifyChain(c) {
			t.Errorf("case %d: malformed entry accepted", i)
		}
		if VerifyChainStrict(c) {
			t.Errorf("case %d: malformed entry accepted by strict walk", i)
		}
	}
}

// A message rewrite that leaves both digest fields intact slips past the
// linkage walk but not past payload recomputation.
func TestVerifyChain_MessageTamper(t *testing.T) {
	entries := buildChain(t, "DEV-1", 3)
	tampered := append([]string(nil), entries...)
	tampered[1] = strings.Replace(tampered[1], `"message":"event"`, `"message":"evil"`, 1)
	if tampered[1] == entries[1] {
		t.Fatal("replacement did not apply")
	}

	if !VerifyChain(tampered) {
		t.Error("linkage walk should not detect message-only tampering")
	}
	if VerifyChainStrict(tampered) {
		t.Error("strict walk missed message tampering")
	}
}

func TestInspectChain(t *testing.T) {
	entries := buildChain(t, "DEV-1", 4)

	res := InspectChain(entries, false)
	if !res.Valid || res.EntriesChecked != 4 {
		t.Errorf("valid chain: %+v", res)
	}

	mutated := append(append([]string(nil), entries[:2]...), entries[3])
	res = InspectChain(mutated, false)
	if res.Valid {
		t.Fatal("deletion not detected")
	}
	if res.BrokenAt != 2 {
		t.Errorf("BrokenAt = %d, want 2", res.BrokenAt)
	}
	if res.ExpectedHash == "" || res.ActualHash == "" || res.ExpectedHash == res.ActualHash {
		t.Errorf("diagnostic digests not populated: %+v", res)
	}

	tampered := append([]string(nil), entries...)
	tampered[1] = strings.Replace(tampered[1], `"message":"event"`, `"message":"evil"`, 1)
	res = InspectChain(tampered, true)
	if res.Valid || res.BrokenAt != 1 {
		t.Errorf("strict inspect on tampered message: %+v", res)
	}

	res = InspectChain(nil, true)
	if !res.Valid || res.EntriesChecked != 0 {
		t.Errorf("empty chain: %+v", res)
	}
}

// A break at the first entry must report broken_at:0 on the wire, not
// drop the field.
func TestVerifyResult_BrokenAtZeroSerialized(t *testing.T) {
	entries := buildChain(t, "DEV-1", 2)[1:]

	res := InspectChain(entries, false)
	if res.Valid || res.BrokenAt != 0 {
		t.Fatalf("inspect: %+v", res)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"broken_at":0`) {
		t.Errorf("broken_at missing from %s", data)
	}
}

func TestExtractHexField(t *testing.T) {
	entries := buildChain(t, "DEV-1", 1)
	v, ok := extractHexField(entries[0], "previous_hash")
	if !ok || v != genesisHex {
		t.Errorf("previous_hash = %q, ok=%v", v, ok)
	}
	if _, ok := extractHexField(entries[0], "no_such_field"); ok {
		t.Error("missing field reported as present")
	}
	if _, ok := extractHexField(`{"previous_hash":"abc"}`, "previous_hash"); ok {
		t.Error("short digest accepted")
	}
	if _, ok := extractHexField(`{"previous_hash":"`+strings.Repeat("g", 64)+`"}`, "previous_hash"); ok {
		t.Error("non-hex digest accepted")
	}
}
