package bootstrapper

const TraceIndexName = "reconstructed_traces"

var spanProperties = map[string]interface{}{
	"span_id":        map[string]interface{}{"type": "keyword"},
	"trace_id":       map[string]interface{}{"type": "keyword"},
	"start_time":     map[string]interface{}{"type": "date_nanos"},
	"end_time":       map[string]interface{}{"type": "date_nanos"},
	"duration":       map[string]interface{}{"type": "long"},
	"operation_name": map[string]interface{}{"type": "keyword"},
	"request_count":  map[string]interface{}{"type": "long"},
	"hostname":       map[string]interface{}{"type": "keyword"},
	"app_name":       map[string]interface{}{"type": "keyword"},
}

var traceIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"batch_id": map[string]interface{}{
				"type": "keyword",
			},
			"batch_created_at": map[string]interface{}{
				"type": "date",
			},
			"trace_id": map[string]interface{}{
				"type": "keyword",
			},
			"start_time": map[string]interface{}{
				"type": "date_nanos",
			},
			"end_time": map[string]interface{}{
				"type": "date_nanos",
			},
			"duration": map[string]interface{}{
				"type": "long",
			},
			"trace_count": map[string]interface{}{
				"type": "long",
			},
			"overall_request_count": map[string]interface{}{
				"type": "long",
			},
			"span_list": map[string]interface{}{
				"type":       "nested",
				"properties": spanProperties,
			},
		},
	},
}
