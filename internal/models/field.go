package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Field is the stored name of an issue attribute, as it appears on the wire.
type Field string

const (
	FieldID         Field = "_id"
	FieldTitle      Field = "issue_title"
	FieldText       Field = "issue_text"
	FieldCreatedBy  Field = "created_by"
	FieldAssignedTo Field = "assigned_to"
	FieldStatusText Field = "status_text"
	FieldOpen       Field = "open"
	FieldCreatedOn  Field = "created_on"
	FieldUpdatedOn  Field = "updated_on"
	FieldProject    Field = "project"
)

// FieldKind is the stored type of a field; query and body values are coerced to it.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindTime
	KindID
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindID:
		return "id"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FieldSpec describes how a field is typed and whether clients may change it.
type FieldSpec struct {
	Name      Field
	Kind      FieldKind
	Updatable bool
}

// Fields is the full field table in document order.
var Fields = []FieldSpec{
	{Name: FieldID, Kind: KindID},
	{Name: FieldTitle, Kind: KindString, Updatable: true},
	{Name: FieldText, Kind: KindString, Updatable: true},
	{Name: FieldCreatedBy, Kind: KindString, Updatable: true},
	{Name: FieldAssignedTo, Kind: KindString, Updatable: true},
	{Name: FieldStatusText, Kind: KindString, Updatable: true},
	{Name: FieldOpen, Kind: KindBool, Updatable: true},
	{Name: FieldCreatedOn, Kind: KindTime},
	{Name: FieldUpdatedOn, Kind: KindTime},
	{Name: FieldProject, Kind: KindString},
}

// LookupField returns the spec for the named field.
func LookupField(name string) (FieldSpec, bool) {
	for _, f := range Fields {
		if string(f.Name) == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ErrCoerce is returned when a value cannot be converted to a field's kind.
var ErrCoerce = errors.New("value does not match field type")

// Coerce converts a raw query or body value to the Go type stored for the field:
// string for KindString and KindID, bool for KindBool, UTC time.Time for KindTime.
func (f FieldSpec) Coerce(v any) (any, error) {
	switch f.Kind {
	case KindString, KindID:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, ErrCoerce)
		}
		return s, nil
	case KindBool:
		b, err := parseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, ErrCoerce)
		}
		return b, nil
	case KindTime:
		t, err := cast.ToTimeE(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, ErrCoerce)
		}
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("%s: unknown kind %s", f.Name, f.Kind)
}

func parseBool(v any) (bool, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "on":
			return true, nil
		case "no", "off":
			return false, nil
		case "":
			return false, ErrCoerce
		}
	}
	return cast.ToBoolE(v)
}

// IsEmpty reports whether a body value counts as "not supplied".
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

// NowUTC returns the current time truncated to the precision every store keeps.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
