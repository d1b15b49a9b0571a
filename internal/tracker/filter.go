package tracker

import (
	"net/url"
	"sort"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// CompileFilter turns read-time query parameters into an equality filter
// scoped to project. Values are coerced to the stored field type; unknown
// fields or values that fail coercion yield a filter that matches nothing.
// The project comes from the path only, so a "project" parameter is ignored.
func CompileFilter(project string, query url.Values) store.Filter {
	filter := store.Filter{Project: project}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == string(models.FieldProject) {
			continue
		}
		spec, ok := models.LookupField(key)
		if !ok {
			filter.MatchNone = true
			continue
		}
		value, err := spec.Coerce(query.Get(key))
		if err != nil {
			filter.MatchNone = true
			continue
		}
		filter.Clauses = append(filter.Clauses, store.Clause{Field: spec.Name, Value: value})
	}
	return filter
}
