package formset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DeleteField is the marker field a persisted row carries when it may be deleted.
const DeleteField = "DELETE"

// Kind is the input type of a field.
type Kind int

// Field kinds.
const (
	Text Kind = iota
	Number
	Select
	Checkbox
	Hidden
	Date
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Select:
		return "select"
	case Checkbox:
		return "checkbox"
	case Hidden:
		return "hidden"
	case Date:
		return "date"
	default:
		return "text"
	}
}

// Field is a single input in a row.
type Field struct {
	Name    string
	Label   string
	Kind    Kind
	Value   string
	Options []string
	Checked bool
}

// reset clears the user-entered value. Selects fall back to their first option.
func (f *Field) reset() {
	f.Checked = false
	f.Value = ""
	if f.Kind == Select && len(f.Options) > 0 {
		f.Value = f.Options[0]
	}
}

// Row is one form of a formset. Its input names are derived from the formset
// prefix and the row index, so moving a row only means changing Index.
type Row struct {
	ID        string
	Index     int
	Fields    []Field
	Persisted bool
	Deleted   bool

	prefix string
}

// Prefix returns the formset prefix the row belongs to.
func (r *Row) Prefix() string { return r.prefix }

// Name returns the input name of field, e.g. "lines-2-amount".
func (r *Row) Name(field string) string {
	return r.prefix + "-" + strconv.Itoa(r.Index) + "-" + field
}

// InputID returns the element id of field, e.g. "id_lines-2-amount".
func (r *Row) InputID(field string) string {
	return "id_" + r.Name(field)
}

// LabelFor returns the for attribute of the label bound to field.
func (r *Row) LabelFor(field string) string {
	return r.InputID(field)
}

// Field returns the named field or nil.
func (r *Row) Field(name string) *Field {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i]
		}
	}
	return nil
}

// HasDeleteMarker reports whether the row carries a DELETE field.
func (r *Row) HasDeleteMarker() bool {
	return r.Field(DeleteField) != nil
}

// Visible reports whether the row is shown.
func (r *Row) Visible() bool {
	return !r.Deleted
}

// Value returns the submitted value of a field. Checkboxes submit "on" when
// checked and nothing otherwise.
func (r *Row) Value(name string) (string, bool) {
	f := r.Field(name)
	if f == nil {
		return "", false
	}
	if f.Kind == Checkbox {
		if f.Checked {
			return "on", true
		}
		return "", false
	}
	return f.Value, true
}

// Set assigns a field value. Checkbox fields accept "on", "true" or "1".
func (r *Row) Set(name, value string) error {
	f := r.Field(name)
	if f == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if f.Kind == Checkbox {
		f.Checked = truthy(value)
		return nil
	}
	f.Value = value
	return nil
}

func (r Row) clone() Row {
	out := r
	out.Fields = make([]Field, len(r.Fields))
	for i, f := range r.Fields {
		f.Options = append([]string(nil), f.Options...)
		out.Fields[i] = f
	}
	return out
}

func truthy(v string) bool {
	switch v {
	case "on", "true", "True", "1", "yes":
		return true
	}
	return false
}

// ReindexName rewrites every "<prefix>-<digits>" occurrence in a legacy input
// name, id or label for attribute so it points at index. The prefix must start
// the string, follow an "id_" or follow a non-word character, so "sublines-3"
// is left alone for prefix "lines". Strings without the pattern are returned
// unchanged.
func ReindexName(name, prefix string, index int) string {
	re := regexp.MustCompile(`(^|[^A-Za-z0-9_])(id_)?` + regexp.QuoteMeta(prefix) + `-\d+`)
	replacement := strings.ReplaceAll(prefix, "$", "$$") + "-" + strconv.Itoa(index)
	return re.ReplaceAllString(name, "${1}${2}"+replacement)
}
