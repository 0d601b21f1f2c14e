// internal/discovery/elasticsearch.go
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/models"
)

const defaultPageSize = 50

// ElasticsearchFinder searches the listing index for postings matching the
// candidate's role, location and salary preferences.
type ElasticsearchFinder struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
	logger   logger.Logger
}

func NewElasticsearchFinder(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchFinder {
	return &ElasticsearchFinder{
		client:   client,
		index:    index,
		pageSize: defaultPageSize,
		logger:   log.WithFields(map[string]interface{}{"component": "discovery"}),
	}
}

func (f *ElasticsearchFinder) Find(ctx context.Context, prefs models.SearchPreferences) ([]models.JobListing, error) {
	body, err := json.Marshal(buildSearchBody(prefs))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	from := 0
	req := esapi.SearchRequest{
		Index: []string{f.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &f.pageSize,
	}

	res, err := req.Do(ctx, f.client)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewTransientCollaboratorError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("search failed: %s", res.String()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	listings := make([]models.JobListing, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		listings = append(listings, hit.Source)
	}

	f.logger.Info("discovery search completed", map[string]interface{}{
		"role":      prefs.Role,
		"totalHits": parsed.Hits.Total.Value,
		"returned":  len(listings),
	})
	return listings, nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source models.JobListing `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// buildSearchBody assembles a bool query: role keywords are required,
// location and salary narrow the result set when present.
func buildSearchBody(prefs models.SearchPreferences) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}
	shouldClauses := []interface{}{}

	if prefs.Role != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  prefs.Role,
				"fields": []string{"title^3", "description"},
				"type":   "best_fields",
			},
		})
	}

	if prefs.Location != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"match": map[string]interface{}{"location": prefs.Location},
		})
	}

	if prefs.MinSalary > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"salary_max": map[string]interface{}{"gte": prefs.MinSalary},
			},
		})
	}

	for _, tag := range prefs.TechStack {
		shouldClauses = append(shouldClauses, map[string]interface{}{
			"match": map[string]interface{}{"description": tag},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(mustClauses) > 0 {
		boolQuery["must"] = mustClauses
	}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}
	if len(shouldClauses) > 0 {
		boolQuery["should"] = shouldClauses
	}
	if len(boolQuery) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
			"sort":  defaultSort(),
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  defaultSort(),
	}
}

func defaultSort() []interface{} {
	return []interface{}{
		map[string]interface{}{"postedAt": map[string]interface{}{"order": "desc"}},
	}
}
