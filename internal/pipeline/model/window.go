package model

import "time"

type Window struct {
	Start  time.Time     `json:"start"`
	Length time.Duration `json:"length"`
}

// WindowFor returns the tumbling window of the given length containing ts.
func WindowFor(ts time.Time, length time.Duration) Window {
	nanos := ts.UnixNano()
	offset := ((nanos % int64(length)) + int64(length)) % int64(length)
	return Window{Start: time.Unix(0, nanos-offset).UTC(), Length: length}
}

func (w Window) End() time.Time {
	return w.Start.Add(w.Length)
}

type WindowedKey struct {
	Signature Signature `json:"signature"`
	Window    Window    `json:"window"`
}
