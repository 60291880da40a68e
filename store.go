package dts

import (
	"errors"
	"fmt"
)

// ErrNonContiguous is returned by Store.Append when the given sequence
// number would leave a gap or overwrite an archived entry.
var ErrNonContiguous = errors.New("non-contiguous append")

// StoredEntry pairs an archive sequence number with the serialized
// entry text exactly as the chain produced it. Stores never re-encode
// entries; verification depends on the original bytes.
type StoredEntry struct {
	Seq   uint64
	Entry string
}

// Store archives exported entries for one device. Sequence numbers
// start at 1 and must be contiguous; a gap on append is an error, since
// a gapped archive can never verify.
type Store interface {
	// Append persists one serialized entry under the given sequence
	// number. seq must equal Count()+1.
	Append(seq uint64, entry string) error

	// Iter streams archived entries with Seq >= startSeq in ascending
	// order. The returned func releases resources and must be called.
	Iter(startSeq uint64) (<-chan StoredEntry, func() error, error)

	// Count returns the highest archived sequence number (0 if empty).
	Count() (uint64, error)

	Close() error
}

// ReadAll drains a store into the ordered entry texts expected by the
// verification operations.
func ReadAll(st Store) ([]string, error) {
	ch, done, err := st.Iter(1)
	if err != nil {
		return nil, err
	}
	var entries []string
	for se := range ch {
		entries = append(entries, se.Entry)
	}
	if err := done(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ArchiveEntry appends a freshly produced entry at the next sequence
// number. Convenience for callers that thread a Chain and a Store
// together.
func ArchiveEntry(st Store, entry string) (uint64, error) {
	n, err := st.Count()
	if err != nil {
		return 0, fmt.Errorf("read archive count: %w", err)
	}
	seq := n + 1
	if err := st.Append(seq, entry); err != nil {
		return 0, err
	}
	return seq, nil
}
