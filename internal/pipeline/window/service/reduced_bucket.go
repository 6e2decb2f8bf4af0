package service

import (
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
)

// reducedBucket is the stored value of one window key. It holds more than one
// entry only when distinct signatures collide on their digest.
type reducedBucket struct {
	Entries []reducedEntry `json:"entries"`
}

type reducedEntry struct {
	Signature model.Signature `json:"signature"`
	Trace     model.Trace     `json:"trace"`
}

func decodeReducedBucket(value []byte) (reducedBucket, error) {
	var bucket reducedBucket
	if err := json.Unmarshal(value, &bucket); err != nil {
		return reducedBucket{}, fmt.Errorf("failed to unmarshal reduced bucket: %w", err)
	}
	return bucket, nil
}

func (rb reducedBucket) encode() ([]byte, error) {
	value, err := json.Marshal(rb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reduced bucket: %w", err)
	}
	return value, nil
}

func (rb reducedBucket) find(signature model.Signature) (model.Trace, bool) {
	for _, entry := range rb.Entries {
		if entry.Signature.Equal(signature) {
			return entry.Trace, true
		}
	}
	return model.Trace{}, false
}

// put replaces the entry for signature, or appends one.
func (rb reducedBucket) put(signature model.Signature, trace model.Trace) reducedBucket {
	entries := make([]reducedEntry, 0, len(rb.Entries)+1)
	replaced := false
	for _, entry := range rb.Entries {
		if entry.Signature.Equal(signature) {
			entry.Trace = trace
			replaced = true
		}
		entries = append(entries, entry)
	}
	if !replaced {
		entries = append(entries, reducedEntry{Signature: signature, Trace: trace})
	}
	return reducedBucket{Entries: entries}
}
