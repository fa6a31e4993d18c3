package search

import (
	"bytes"
	"context"
	"encoding/json"

	"example.com/resto/services/kitchen/config"
	"example.com/resto/services/kitchen/internal/kitchen"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient indexes completed kitchen orders for history search
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexOrder indexes a completed order in the history index. The
// document id is the order id, so re-completions overwrite rather than
// duplicate.
func (c *ElasticClient) IndexOrder(ctx context.Context, order kitchen.UnifiedOrder) error {
	log.Info().Str("order_id", order.ID).Msg("indexing completed order")

	doc := map[string]interface{}{
		"id":            order.ID,
		"order_source":  order.Source,
		"order_type":    order.Type,
		"status":        order.Status,
		"table_number":  order.TableNumber,
		"customer_name": order.CustomerName,
		"items":         order.Items,
		"created_at":    order.CreatedAt,
		"scheduled_for": order.ScheduledFor,
		"waiting_time":  order.WaitingTime,
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: order.ID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Info().Str("order_id", order.ID).Msg("order indexed successfully")
	return nil
}

// SearchOrders searches the order history with the given criteria
func (c *ElasticClient) SearchOrders(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}
