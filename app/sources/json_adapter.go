package sources

import (
	"encoding/json"
	"fmt"

	"github.com/grantpipe/grantpipe/app/ingest"
)

// Adapter turns a fetched payload into the raw records the pipeline
// ingests. Adapters know nothing about canonical fields: key resolution is
// the normalizer's job.
type Adapter interface {
	Parse(data []byte) ([]ingest.RawRecord, error)
}

// AdapterFor returns the adapter for a configured source format.
func AdapterFor(config *Config) (Adapter, error) {
	switch config.Format {
	case FormatJSON:
		return NewJSONAdapter(), nil
	case FormatHTML:
		return NewHTMLAdapter(config.URL), nil
	case FormatFeed:
		return NewFeedAdapter(), nil
	default:
		return nil, fmt.Errorf("no adapter for format %q", config.Format)
	}
}

// JSONAdapter reads government JSON exports. The payload is either a bare
// array of records or an object wrapping them under "rows" or "data".
type JSONAdapter struct{}

func NewJSONAdapter() *JSONAdapter {
	return &JSONAdapter{}
}

func (a *JSONAdapter) Parse(data []byte) ([]ingest.RawRecord, error) {
	var asArray []ingest.RawRecord
	if err := json.Unmarshal(data, &asArray); err == nil {
		return asArray, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("failed to parse JSON payload: %w", err)
	}

	for _, key := range []string{"rows", "data"} {
		wrapped, ok := asObject[key]
		if !ok {
			continue
		}
		var records []ingest.RawRecord
		if err := json.Unmarshal(wrapped, &records); err != nil {
			return nil, fmt.Errorf("failed to parse JSON %q array: %w", key, err)
		}
		return records, nil
	}

	return nil, fmt.Errorf("unrecognized JSON layout: expected array or rows/data wrapper")
}
