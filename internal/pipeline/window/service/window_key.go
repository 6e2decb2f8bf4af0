package service

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	windowKeyMarker     byte = 'w'
	streamTimeKeyMarker byte = 't'
)

// Window keys sort by partition, then window start, so that every window that
// closed before a given start is one contiguous key range.
func windowKeyPrefix(partition int) []byte {
	key := make([]byte, 0, 3)
	key = append(key, windowKeyMarker)
	return binary.BigEndian.AppendUint16(key, uint16(partition))
}

func windowStartKey(partition int, start int64) []byte {
	return binary.BigEndian.AppendUint64(windowKeyPrefix(partition), orderedUint64(start))
}

// windowKey is fixed width; signatures sharing a digest share the key's bucket.
func windowKey(partition int, start time.Time, signatureDigest uint64) []byte {
	return binary.BigEndian.AppendUint64(windowStartKey(partition, start.UnixNano()), signatureDigest)
}

func streamTimeKey(partition int) []byte {
	key := make([]byte, 0, 3)
	key = append(key, streamTimeKeyMarker)
	return binary.BigEndian.AppendUint16(key, uint16(partition))
}

// orderedUint64 maps int64 onto uint64 preserving order, so negative
// timestamps sort before positive ones.
func orderedUint64(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

func encodeTime(t time.Time) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(t.UnixNano()))
}

func decodeTime(value []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(value))).UTC()
}

const minWindowStart int64 = math.MinInt64
