package formset

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrManagementForm is returned when the management fields are missing or malformed.
var ErrManagementForm = errors.New("formset: management form data missing or tampered")

// Management field names, relative to the formset prefix.
const (
	TotalFormsField   = "TOTAL_FORMS"
	InitialFormsField = "INITIAL_FORMS"
	MinNumFormsField  = "MIN_NUM_FORMS"
	MaxNumFormsField  = "MAX_NUM_FORMS"
)

// ManagementForm holds the hidden counters submitted with a formset.
type ManagementForm struct {
	TotalForms   int
	InitialForms int
	MinNumForms  int
	MaxNumForms  int
}

// ManagementForm returns the current counters.
func (f *Formset) ManagementForm() ManagementForm {
	return ManagementForm{
		TotalForms:   f.TotalForms(),
		InitialForms: f.InitialForms(),
		MinNumForms:  f.MinForms,
		MaxNumForms:  f.MaxForms,
	}
}

// Encode writes the counters into v under prefix.
func (m ManagementForm) Encode(prefix string, v url.Values) {
	v.Set(prefix+"-"+TotalFormsField, strconv.Itoa(m.TotalForms))
	v.Set(prefix+"-"+InitialFormsField, strconv.Itoa(m.InitialForms))
	v.Set(prefix+"-"+MinNumFormsField, strconv.Itoa(m.MinNumForms))
	v.Set(prefix+"-"+MaxNumFormsField, strconv.Itoa(m.MaxNumForms))
}

// DecodeManagementForm reads the counters for prefix. TOTAL_FORMS and
// INITIAL_FORMS are required; the min and max counters default to 0.
func DecodeManagementForm(prefix string, v url.Values) (ManagementForm, error) {
	var m ManagementForm
	var err error
	if m.TotalForms, err = requiredInt(v, prefix+"-"+TotalFormsField); err != nil {
		return ManagementForm{}, err
	}
	if m.InitialForms, err = requiredInt(v, prefix+"-"+InitialFormsField); err != nil {
		return ManagementForm{}, err
	}
	m.MinNumForms = optionalInt(v, prefix+"-"+MinNumFormsField)
	m.MaxNumForms = optionalInt(v, prefix+"-"+MaxNumFormsField)
	if m.InitialForms > m.TotalForms {
		return ManagementForm{}, fmt.Errorf("%w: %d initial forms exceed %d total", ErrManagementForm, m.InitialForms, m.TotalForms)
	}
	return m, nil
}

func requiredInt(v url.Values, key string) (int, error) {
	raw := v.Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s missing", ErrManagementForm, key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrManagementForm, key, raw)
	}
	return n, nil
}

func optionalInt(v url.Values, key string) int {
	n, err := strconv.Atoi(v.Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Values encodes the management form and every row, hidden rows included, as
// the browser would submit them.
func (f *Formset) Values() url.Values {
	v := url.Values{}
	f.ManagementForm().Encode(f.Prefix, v)
	for _, r := range f.rows {
		for _, field := range r.Fields {
			if value, ok := r.Value(field.Name); ok {
				v.Set(r.Name(field.Name), value)
			}
		}
	}
	return v
}

// DefaultMaxNum bounds TOTAL_FORMS when the server sets no maximum, and is the
// slack added on top of maxForms for the absolute cap.
const DefaultMaxNum = 1000

// Parse rebuilds a formset from submitted values. Rows below INITIAL_FORMS are
// persisted; rows whose DELETE marker is set come back soft-deleted.
//
// The limits come from the caller; the submitted MIN_NUM_FORMS and
// MAX_NUM_FORMS are ignored. TOTAL_FORMS above absoluteMax is rejected with
// ErrMaxForms before any row is built. absoluteMax <= 0 means maxForms (or
// DefaultMaxNum when maxForms is unset) plus DefaultMaxNum.
func Parse(v url.Values, prefix string, template Row, minForms, maxForms, absoluteMax int) (*Formset, error) {
	m, err := DecodeManagementForm(prefix, v)
	if err != nil {
		return nil, err
	}
	if absoluteMax <= 0 {
		absoluteMax = maxForms
		if absoluteMax <= 0 {
			absoluteMax = DefaultMaxNum
		}
		absoluteMax += DefaultMaxNum
	}
	if m.TotalForms > absoluteMax {
		return nil, fmt.Errorf("%w: %d forms exceed absolute max %d", ErrMaxForms, m.TotalForms, absoluteMax)
	}
	if maxForms > 0 && m.TotalForms > maxForms+m.InitialForms {
		return nil, fmt.Errorf("%w: %d forms", ErrMaxForms, m.TotalForms)
	}
	f := New(prefix, minForms, maxForms, template)
	for i := 0; i < m.TotalForms; i++ {
		row := f.template.clone()
		row.Index = i
		for j := range row.Fields {
			field := &row.Fields[j]
			raw, present := v[row.Name(field.Name)]
			if !present || len(raw) == 0 {
				continue
			}
			if field.Kind == Checkbox {
				field.Checked = truthy(raw[0])
			} else {
				field.Value = raw[0]
			}
		}
		var added *Row
		if i < m.InitialForms {
			added = f.Load(row)
		} else {
			added = f.Append(row)
		}
		if marker := added.Field(DeleteField); marker != nil && (marker.Checked || truthy(marker.Value)) {
			added.Deleted = true
		}
	}
	return f, nil
}
