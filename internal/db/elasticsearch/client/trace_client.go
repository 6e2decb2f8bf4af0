package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Avi18971911/TraceReconstructor/internal/db/elasticsearch/model"
	"github.com/elastic/go-elasticsearch/v8"
)

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards (not the whole index) immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. The changes made by this request will be made visible at some point after the request returns.
	Async RefreshRate = "false"
)

type TraceClient interface {
	// BulkIndex indexes (inserts) multiple documents in the same index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
	// Count counts the number of documents in the index matching the query
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/search-count.html
	Count(ctx context.Context, query string, indices []string) (int64, error)
}

type TraceClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewTraceClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *TraceClientImpl {
	return &TraceClientImpl{es: es, refreshRate: string(refreshRate)}
}

func (a *TraceClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	body, err := bulkIndexBody(metaInfo, documentInfo)
	if err != nil {
		return err
	}
	res, err := a.es.Bulk(
		bytes.NewReader(body),
		a.es.Bulk.WithIndex(index),
		a.es.Bulk.WithContext(ctx),
		a.es.Bulk.WithRefresh(a.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkResponse model.BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("failed to decode bulk response body: %w", err)
	}
	if failure := bulkResponse.FirstFailure(); failure != nil {
		return fmt.Errorf("bulk index rejected document %s in %s: %s", failure.ID, failure.Index, failure.Reason)
	}
	return nil
}

// bulkIndexBody builds the newline delimited meta/document pairs of a bulk request.
func bulkIndexBody(metaInfo []MetaMap, documentInfo []DocumentMap) ([]byte, error) {
	var buf bytes.Buffer
	for i, d := range documentInfo {
		var meta MetaMap
		if metaInfo != nil && i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			// empty meta for bulk index
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (a *TraceClientImpl) Count(
	ctx context.Context,
	query string,
	indices []string,
) (int64, error) {
	res, err := a.es.Count(
		a.es.Count.WithContext(ctx),
		a.es.Count.WithIndex(indices...),
		a.es.Count.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("failed to execute query: %s", res.String())
	}

	var countResponse model.CountResponse
	if err := json.NewDecoder(res.Body).Decode(&countResponse); err != nil {
		return 0, fmt.Errorf("failed to decode response body: %w", err)
	}

	return int64(countResponse.Count), nil
}
