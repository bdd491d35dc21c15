// internal/pool/elasticsearch.go
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"assignment-service/internal/common/errors"
	"assignment-service/internal/common/logger"
	"assignment-service/internal/models"
)

const defaultLimit = 50

// ElasticsearchPool queries the developer index. Documents carry
// developer_id, tier, skill_ids and available fields maintained by the
// profile pipeline.
type ElasticsearchPool struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchPool(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchPool {
	return &ElasticsearchPool{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "developer-pool"}),
	}
}

func (p *ElasticsearchPool) FindEligibleWorkers(ctx context.Context, q Query) ([]Worker, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	req, err := buildEligibilityQuery(p.index, q, limit)
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, errors.NewPoolQueryFailedError(string(q.Tier), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		p.logger.Error("developer pool query returned error", map[string]interface{}{
			"status": res.StatusCode,
			"body":   string(body),
		})
		return nil, errors.NewPoolQueryFailedError(string(q.Tier), fmt.Errorf("search returned status %d", res.StatusCode))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source struct {
					DeveloperID string   `json:"developer_id"`
					Tier        string   `json:"tier"`
					SkillIDs    []string `json:"skill_ids"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewPoolQueryFailedError(string(q.Tier), fmt.Errorf("decode search response: %w", err))
	}

	workers := make([]Worker, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		workers = append(workers, Worker{
			DeveloperID: hit.Source.DeveloperID,
			Tier:        models.TierLevel(hit.Source.Tier),
			SkillIDs:    hit.Source.SkillIDs,
		})
	}
	return workers, nil
}

func buildEligibilityQuery(index string, q Query, limit int) (*esapi.SearchRequest, error) {
	if index == "" {
		return nil, errors.NewPoolQueryFailedError(string(q.Tier), fmt.Errorf("developer index is required"))
	}

	filterClauses := []interface{}{
		map[string]interface{}{
			"terms": map[string]interface{}{"skill_ids": q.SkillIDs},
		},
		map[string]interface{}{
			"term": map[string]interface{}{"tier": string(q.Tier)},
		},
		map[string]interface{}{
			"term": map[string]interface{}{"available": true},
		},
	}

	boolQuery := map[string]interface{}{
		"filter": filterClauses,
	}
	if len(q.ExcludeDeveloperIDs) > 0 {
		boolQuery["must_not"] = []interface{}{
			map[string]interface{}{
				"terms": map[string]interface{}{"developer_id": q.ExcludeDeveloperIDs},
			},
		}
	}

	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
	}

	body, _ := json.Marshal(queryBody)
	size := limit
	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}
	return &req, nil
}
