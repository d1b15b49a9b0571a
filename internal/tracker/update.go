package tracker

import (
	"time"

	"github.com/spf13/cast"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// BodyID extracts the _id from a decoded request body. It returns "" when absent.
func BodyID(body map[string]any) string {
	v, ok := body[string(models.FieldID)]
	if !ok || models.IsEmpty(v) {
		return ""
	}
	return cast.ToString(v)
}

// CompileUpdate turns a partial update body into a change-set.
//
// Fields with empty values count as not supplied. Fields clients may not
// change (project, timestamps) and unknown fields are dropped. The
// change-set must keep at least one field. A value that cannot be coerced
// to its field type fails as ErrUpdateNotFound, with nothing written.
func CompileUpdate(body map[string]any, now time.Time) (string, store.ChangeSet, error) {
	id := BodyID(body)
	if id == "" {
		return "", store.ChangeSet{}, ErrMissingID
	}

	changes := store.ChangeSet{Fields: map[models.Field]any{}, UpdatedOn: now}
	var coerceErr error
	for key, raw := range body {
		if key == string(models.FieldID) || models.IsEmpty(raw) {
			continue
		}
		spec, ok := models.LookupField(key)
		if !ok || !spec.Updatable {
			continue
		}
		value, err := spec.Coerce(raw)
		if err != nil {
			coerceErr = err
			continue
		}
		changes.Fields[spec.Name] = value
	}

	if len(changes.Fields) == 0 && coerceErr == nil {
		return id, changes, idError(id, ErrNoUpdateFields)
	}
	if coerceErr != nil {
		return id, changes, idError(id, ErrUpdateNotFound)
	}
	return id, changes, nil
}
