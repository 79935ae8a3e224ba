package formset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnknownRow is returned when an operation names a row not in the formset.
	ErrUnknownRow = errors.New("formset: unknown row")
	// ErrUnknownField is returned when a row has no field of the given name.
	ErrUnknownField = errors.New("formset: unknown field")
	// ErrMaxForms is returned when adding a row would exceed MaxForms.
	ErrMaxForms = errors.New("formset: maximum number of forms reached")
	// ErrMinForms is returned when deleting would leave fewer than MinForms rows.
	ErrMinForms = errors.New("formset: minimum number of forms reached")
	// ErrNotDeletable is returned when a persisted row has no DELETE marker.
	ErrNotDeletable = errors.New("formset: row cannot be deleted")
)

// Formset is an ordered collection of rows sharing a name prefix. Persisted
// rows always come first, followed by rows added on the page.
type Formset struct {
	Prefix   string
	MinForms int
	MaxForms int

	template Row
	rows     []*Row
}

// New builds an empty formset. template describes the fields of a blank row.
func New(prefix string, minForms, maxForms int, template Row) *Formset {
	tpl := template.clone()
	tpl.prefix = prefix
	tpl.Persisted = false
	tpl.Deleted = false
	for i := range tpl.Fields {
		tpl.Fields[i].reset()
	}
	return &Formset{Prefix: prefix, MinForms: minForms, MaxForms: maxForms, template: tpl}
}

// Load appends a persisted row, e.g. one loaded from the database.
func (f *Formset) Load(row Row) *Row {
	r := row.clone()
	r.prefix = f.Prefix
	r.Persisted = true
	r.Index = len(f.rows)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	f.rows = append(f.rows, &r)
	return &r
}

// Append adds an unsaved row carrying the given values.
func (f *Formset) Append(row Row) *Row {
	r := row.clone()
	r.prefix = f.Prefix
	r.Persisted = false
	r.Index = len(f.rows)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	f.rows = append(f.rows, &r)
	return &r
}

// AddForm clones the last visible row with its values cleared and appends it
// with the next unused index.
func (f *Formset) AddForm() (*Row, error) {
	if f.MaxForms > 0 && len(f.VisibleRows()) >= f.MaxForms {
		return nil, ErrMaxForms
	}
	source := f.template
	if last := f.lastVisible(); last != nil {
		source = *last
	}
	r := source.clone()
	for i := range r.Fields {
		r.Fields[i].reset()
	}
	r.ID = uuid.NewString()
	r.prefix = f.Prefix
	r.Index = len(f.rows)
	r.Persisted = false
	r.Deleted = false
	f.rows = append(f.rows, &r)
	return &r, nil
}

// HandleDeleteClick deletes a row. Persisted rows are marked for deletion and
// hidden so the deletion is submitted; their index is kept. Unsaved rows are
// removed and the remaining rows are renumbered from 0.
func (f *Formset) HandleDeleteClick(rowID string) error {
	pos := f.position(rowID)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRow, rowID)
	}
	row := f.rows[pos]
	if row.Deleted {
		return nil
	}
	if !f.ShowDeleteButtons() {
		return ErrMinForms
	}
	if row.Persisted {
		marker := row.Field(DeleteField)
		if marker == nil {
			return fmt.Errorf("%w: %s", ErrNotDeletable, rowID)
		}
		marker.Checked = true
		if marker.Kind != Checkbox {
			marker.Value = "on"
		}
		row.Deleted = true
		return nil
	}
	f.rows = append(f.rows[:pos], f.rows[pos+1:]...)
	f.reindex()
	return nil
}

// Restore undoes a soft deletion.
func (f *Formset) Restore(rowID string) error {
	pos := f.position(rowID)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRow, rowID)
	}
	row := f.rows[pos]
	if marker := row.Field(DeleteField); marker != nil {
		marker.reset()
	}
	row.Deleted = false
	return nil
}

func (f *Formset) reindex() {
	for i, r := range f.rows {
		r.Index = i
	}
}

func (f *Formset) position(rowID string) int {
	for i, r := range f.rows {
		if r.ID == rowID {
			return i
		}
	}
	return -1
}

func (f *Formset) lastVisible() *Row {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].Visible() {
			return f.rows[i]
		}
	}
	return nil
}

// Row returns the row with the given id.
func (f *Formset) Row(rowID string) (*Row, bool) {
	pos := f.position(rowID)
	if pos < 0 {
		return nil, false
	}
	return f.rows[pos], true
}

// Rows returns every row, hidden ones included, in order.
func (f *Formset) Rows() []*Row {
	return append([]*Row(nil), f.rows...)
}

// VisibleRows returns the rows that are not marked for deletion.
func (f *Formset) VisibleRows() []*Row {
	out := make([]*Row, 0, len(f.rows))
	for _, r := range f.rows {
		if r.Visible() {
			out = append(out, r)
		}
	}
	return out
}

// TotalForms is the value of the TOTAL_FORMS counter, hidden rows included.
func (f *Formset) TotalForms() int {
	return len(f.rows)
}

// InitialForms counts persisted rows.
func (f *Formset) InitialForms() int {
	n := 0
	for _, r := range f.rows {
		if r.Persisted {
			n++
		}
	}
	return n
}

// ShowDeleteButtons reports whether rows get a delete button, which is only
// the case while more than MinForms rows are visible.
func (f *Formset) ShowDeleteButtons() bool {
	return len(f.VisibleRows()) > f.MinForms
}

// DeleteButtonCount is the number of delete buttons rendered.
func (f *Formset) DeleteButtonCount() int {
	if !f.ShowDeleteButtons() {
		return 0
	}
	return len(f.VisibleRows())
}

// CanAdd reports whether AddForm would succeed.
func (f *Formset) CanAdd() bool {
	return f.MaxForms <= 0 || len(f.VisibleRows()) < f.MaxForms
}
