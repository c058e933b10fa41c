package projections

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
)

const defaultSearchLimit = 25

// InvoiceSearcher queries the invoice index
type InvoiceSearcher struct {
	elasticClient *elasticsearch.Client
	cfg           config.ElasticConfig
}

func NewInvoiceSearcher(elasticClient *elasticsearch.Client, cfg config.ElasticConfig) *InvoiceSearcher {
	return &InvoiceSearcher{elasticClient: elasticClient, cfg: cfg}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source InvoiceDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchInvoices runs a full text query restricted to one tenant
func (s *InvoiceSearcher) SearchInvoices(ctx context.Context, tenantID uint, query string, limit int) ([]InvoiceDocument, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultSearchLimit
	}

	must := []interface{}{}
	if q := strings.TrimSpace(query); q != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q,
				"fields":    []string{"invoice_number^3", "client_name^2", "email", "notes", "items"},
				"fuzziness": "AUTO",
			},
		})
	}

	body, err := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": []interface{}{map[string]interface{}{"term": map[string]interface{}{"tenant_id": tenantID}}},
			},
		},
		"sort": []interface{}{"_score", map[string]interface{}{"invoice_id": "desc"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	index := config.FormatIndex(s.cfg, InvoicesIndex)
	res, err := s.elasticClient.Search(
		s.elasticClient.Search.WithContext(ctx),
		s.elasticClient.Search.WithIndex(index),
		s.elasticClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to search %s: %s", index, res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]InvoiceDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}
