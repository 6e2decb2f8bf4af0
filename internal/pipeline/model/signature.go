package model

import (
	"cmp"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	entryFieldSeparator = "\x1f"
	entrySeparator      = "\x1e"
)

type SignatureEntry struct {
	OperationName   string `json:"operation_name"`
	Hostname        string `json:"hostname"`
	ApplicationName string `json:"app_name"`
}

func compareEntries(a, b SignatureEntry) int {
	return cmp.Or(
		strings.Compare(a.OperationName, b.OperationName),
		strings.Compare(a.Hostname, b.Hostname),
		strings.Compare(a.ApplicationName, b.ApplicationName),
	)
}

// Signature is the structural fingerprint of a trace. Entries are kept sorted
// and free of duplicates so that equal sets always share one representation.
type Signature struct {
	Entries []SignatureEntry `json:"entries"`
	key     string
}

func NewSignature(entries []SignatureEntry) Signature {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)
	sorted = slices.Compact(sorted)

	var sb strings.Builder
	for i, entry := range sorted {
		if i > 0 {
			sb.WriteString(entrySeparator)
		}
		sb.WriteString(entry.OperationName)
		sb.WriteString(entryFieldSeparator)
		sb.WriteString(entry.Hostname)
		sb.WriteString(entryFieldSeparator)
		sb.WriteString(entry.ApplicationName)
	}
	return Signature{Entries: sorted, key: sb.String()}
}

func SignatureOf(trace Trace) Signature {
	entries := make([]SignatureEntry, 0, len(trace.SpanList))
	for _, span := range trace.SpanList {
		entries = append(entries, SignatureEntry{
			OperationName:   span.OperationName,
			Hostname:        span.Hostname,
			ApplicationName: span.ApplicationName,
		})
	}
	return NewSignature(entries)
}

// Key is the canonical serialized form; equal signatures have equal keys.
func (s Signature) Key() string {
	if s.key == "" && len(s.Entries) > 0 {
		return NewSignature(s.Entries).key
	}
	return s.key
}

func (s Signature) Digest() uint64 {
	return xxhash.Sum64String(s.Key())
}

func (s Signature) Equal(other Signature) bool {
	return s.Key() == other.Key()
}
