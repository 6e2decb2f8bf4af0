package model

import "time"

type Stage string

const (
	StageAggregated Stage = "aggregated"
	StageRekeyed    Stage = "rekeyed"
	StageReduced    Stage = "reduced"
	StageReemitted  Stage = "reemitted"
)

// Update is one element of a continuously refining changelog. It never marks
// a value as final; consumers treat every update as a possibly superseded snapshot.
type Update[K any] struct {
	Key       K         `json:"key"`
	Trace     Trace     `json:"trace"`
	EventTime time.Time `json:"event_time"`
	Stage     Stage     `json:"stage"`
}

type TraceBatch struct {
	BatchID   string    `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
	Traces    []Trace   `json:"traces"`
}
