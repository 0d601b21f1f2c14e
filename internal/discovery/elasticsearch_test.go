// internal/discovery/elasticsearch_test.go
package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhunt-pipeline/internal/models"
)

func TestBuildSearchBody_FullPreferences(t *testing.T) {
	prefs := models.SearchPreferences{
		Role:      "Engineering Manager",
		Location:  "Berlin",
		TechStack: []string{"Kubernetes", "AWS"},
		MinSalary: 700000,
	}

	body := buildSearchBody(prefs)

	boolQuery, ok := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	require.True(t, ok)

	must := boolQuery["must"].([]interface{})
	require.Len(t, must, 1)
	multiMatch := must[0].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "Engineering Manager", multiMatch["query"])

	filters := boolQuery["filter"].([]interface{})
	require.Len(t, filters, 2)
	rangeFilter := filters[1].(map[string]interface{})["range"].(map[string]interface{})
	salary := rangeFilter["salary_max"].(map[string]interface{})
	assert.Equal(t, int64(700000), salary["gte"])

	should := boolQuery["should"].([]interface{})
	assert.Len(t, should, 2)
}

func TestBuildSearchBody_EmptyPreferencesFallsBackToMatchAll(t *testing.T) {
	body := buildSearchBody(models.SearchPreferences{})

	query := body["query"].(map[string]interface{})
	_, hasMatchAll := query["match_all"]
	assert.True(t, hasMatchAll)
}

func TestBuildSearchBody_NoSalaryFilterWhenUnset(t *testing.T) {
	body := buildSearchBody(models.SearchPreferences{Role: "SRE"})

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	_, hasFilter := boolQuery["filter"]
	assert.False(t, hasFilter)
}

func TestBuildSearchBody_SortsByRecency(t *testing.T) {
	body := buildSearchBody(models.SearchPreferences{Role: "SRE"})

	sorts := body["sort"].([]interface{})
	require.Len(t, sorts, 1)
	posted := sorts[0].(map[string]interface{})["postedAt"].(map[string]interface{})
	assert.Equal(t, "desc", posted["order"])
}
