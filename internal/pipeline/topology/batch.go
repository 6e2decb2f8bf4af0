package topology

import (
	"context"
	"fmt"

	"github.com/Avi18971911/TraceReconstructor/internal/pipeline/model"
	"golang.org/x/sync/errgroup"
)

// ProcessBatch runs a batch of valid span records through the topology.
// Aggregator partitions run in parallel, then reducer partitions run in
// parallel; within a partition records keep their batch order. The first
// state store failure cancels the batch and is returned.
func (tp *Topology) ProcessBatch(ctx context.Context, records []model.SpanRecord) ([]model.Update[string], error) {
	rekeyed := make([]model.Update[model.Signature], len(records))
	byAggregator := make([][]int, len(tp.aggregators))
	for i, record := range records {
		p := tp.AggregatorPartition(record.Key)
		byAggregator[p] = append(byAggregator[p], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for p, indexes := range byAggregator {
		if len(indexes) == 0 {
			continue
		}
		g.Go(func() error {
			for _, i := range indexes {
				update, err := tp.Aggregate(gctx, p, records[i].Key, records[i].Span)
				if err != nil {
					return fmt.Errorf("aggregator partition %d: %w", p, err)
				}
				rekeyed[i] = update
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reduced := make([]model.Update[string], len(records))
	emitted := make([]bool, len(records))
	byReducer := make([][]int, len(tp.reducers))
	for i := range rekeyed {
		p := tp.ReducerPartition(rekeyed[i].Key)
		byReducer[p] = append(byReducer[p], i)
	}

	g, gctx = errgroup.WithContext(ctx)
	for p, indexes := range byReducer {
		if len(indexes) == 0 {
			continue
		}
		g.Go(func() error {
			for _, i := range indexes {
				update, ok, err := tp.Reduce(gctx, p, rekeyed[i])
				if err != nil {
					return fmt.Errorf("reducer partition %d: %w", p, err)
				}
				reduced[i], emitted[i] = update, ok
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Update[string], 0, len(records))
	for i := range reduced {
		if emitted[i] {
			out = append(out, reduced[i])
		}
	}
	tp.metrics.UpdatesEmitted(ctx, len(out))
	return out, nil
}
