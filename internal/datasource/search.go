package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/transport"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// SearchClient retrieves documents from knowledge and vector
// datasources over HTTP.
type SearchClient struct {
	reg  *Registry
	http *transport.Client
}

// NewSearchClient builds a client over the registry's search
// datasources.
func NewSearchClient(reg *Registry, http *transport.Client) *SearchClient {
	return &SearchClient{reg: reg, http: http}
}

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Search posts the query and returns the result documents.
func (c *SearchClient) Search(ctx context.Context, datasource, query string, limit int, threshold *float64) ([]map[string]any, error) {
	ds, ok := c.reg.Datasource(datasource)
	if !ok {
		return nil, fmt.Errorf("datasource: %q is not configured", datasource)
	}
	if ds.DSKind != ast.DatasourceKnowledge && ds.DSKind != ast.DatasourceVector {
		return nil, fmt.Errorf("datasource: %q is %s, not searchable", datasource, ds.DSKind)
	}

	headers := map[string]string{}
	if key := ds.Options["api_key"]; key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	start := time.Now()
	raw, err := c.http.PostJSON(ctx, datasource, ds.URL, headers, searchRequest{
		Query:     query,
		Limit:     limit,
		Threshold: threshold,
	})
	metrics.QuerySeconds.WithLabelValues(string(ds.DSKind)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	docs, err := extractDocuments(raw)
	if err != nil {
		return nil, fmt.Errorf("datasource %q: %w", datasource, err)
	}
	return docs, nil
}

// extractDocuments accepts either a bare array or {"results": [...]}.
func extractDocuments(raw any) ([]map[string]any, error) {
	items, ok := raw.([]any)
	if !ok {
		body, isMap := raw.(map[string]any)
		if !isMap {
			return nil, fmt.Errorf("unexpected response shape %T", raw)
		}
		items, ok = body["results"].([]any)
		if !ok {
			return nil, fmt.Errorf("response has no results list")
		}
	}

	docs := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if doc, ok := item.(map[string]any); ok {
			docs = append(docs, doc)
			continue
		}
		docs = append(docs, map[string]any{"value": item})
	}
	return docs, nil
}
