package catalog

import (
	"sort"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query is a tenant-scoped catalog search.
type Query struct {
	Tenant string
	Text   string
	From   int
	Size   int
}

func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.From < 0 {
		q.From = 0
	}
	if q.Size < 1 {
		q.Size = defaultPageSize
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}
	return q
}

func buildSearchBody(q Query) map[string]interface{} {
	must := []interface{}{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"schema_id^3", "title^2", "description", "properties"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"tenant": q.Tenant}},
				},
			},
		},
	}
	if q.Text == "" {
		query["sort"] = []interface{}{
			map[string]interface{}{"schema_id.raw": map[string]interface{}{"order": "asc"}},
		}
	}
	return query
}

func sortStrings(s []string) { sort.Strings(s) }
