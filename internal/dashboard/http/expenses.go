package dashboardhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/dashboard"
	"github.com/zento-erp/zento/internal/formset"
	"github.com/zento-erp/zento/internal/tenant"
	"github.com/zento-erp/zento/internal/view"
)

// ExpenseBook records expenses entered on the expense form.
type ExpenseBook interface {
	Categories(ctx context.Context) ([]dashboard.ExpenseCategory, error)
	Record(ctx context.Context, entries []dashboard.ExpenseEntry) (int, error)
}

// Expense form limits. The form always keeps one row and accepts at most
// ExpenseFormMax rows per submission.
const (
	ExpenseFormPrefix = "expenses"
	ExpenseFormMin    = 1
	ExpenseFormMax    = 20

	expenseFormPath = "/dashboard/expenses/new"
	maxFormBytes    = 1 << 20
)

// WithExpenseBook enables the expense entry form.
func (h *Handler) WithExpenseBook(book ExpenseBook) {
	h.expenses = book
}

// ExpenseFormViewModel is rendered by pages/expenses.html.
type ExpenseFormViewModel struct {
	Action     string
	Hidden     []HiddenInput
	Rows       []ExpenseRowView
	ShowDelete bool
	CanAdd     bool
	Errors     []string
}

// HiddenInput is one management form counter.
type HiddenInput struct {
	Name  string
	Value string
}

// ExpenseRowView is one formset row.
type ExpenseRowView struct {
	Index   int
	Deleted bool
	Inputs  []FieldInput
}

// FieldInput is one rendered input of a row.
type FieldInput struct {
	ID       string
	Name     string
	LabelFor string
	Label    string
	Kind     string
	Value    string
	Checked  bool
	Options  []SelectOption
}

// SelectOption is an option of a select input.
type SelectOption struct {
	Value    string
	Label    string
	Selected bool
}

func expenseRowTemplate(categories []dashboard.ExpenseCategory) formset.Row {
	options := make([]string, 0, len(categories))
	for _, c := range categories {
		options = append(options, strconv.FormatInt(c.ID, 10))
	}
	return formset.Row{Fields: []formset.Field{
		{Name: "date", Label: "Fecha", Kind: formset.Date},
		{Name: "description", Label: "Concepto", Kind: formset.Text},
		{Name: "category", Label: "Categoría", Kind: formset.Select, Options: options},
		{Name: "amount", Label: "Importe", Kind: formset.Number},
	}}
}

func (h *Handler) handleExpenseForm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	categories, err := h.expenses.Categories(ctx)
	if err != nil {
		h.handleServerError(w, "load expense categories", err)
		return
	}
	fs := formset.New(ExpenseFormPrefix, ExpenseFormMin, ExpenseFormMax, expenseRowTemplate(categories))
	row, err := fs.AddForm()
	if err != nil {
		h.handleServerError(w, "expense form", err)
		return
	}
	_ = row.Set("date", h.now().Format(charts.DateLayout))
	h.renderExpenseForm(w, r, http.StatusOK, fs, categories, nil)
}

func (h *Handler) handleExpenseSubmit(w http.ResponseWriter, r *http.Request) {
	if !sameOrigin(r) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Formulario no válido", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	categories, err := h.expenses.Categories(ctx)
	if err != nil {
		h.handleServerError(w, "load expense categories", err)
		return
	}
	fs, err := formset.Parse(r.PostForm, ExpenseFormPrefix, expenseRowTemplate(categories), ExpenseFormMin, ExpenseFormMax, 0)
	if err != nil {
		h.logger.Warn("expense form rejected", slog.Any("error", err))
		http.Error(w, "Formulario no válido", http.StatusBadRequest)
		return
	}
	if fs.InitialForms() > 0 {
		http.Error(w, "Formulario no válido", http.StatusBadRequest)
		return
	}

	if raw := r.PostForm.Get("delete"); raw != "" {
		h.deleteExpenseRow(w, r, fs, categories, raw)
		return
	}
	if r.PostForm.Get("action") == "add" {
		var errs []string
		if _, err := fs.AddForm(); errors.Is(err, formset.ErrMaxForms) {
			errs = append(errs, fmt.Sprintf("No se pueden añadir más de %d filas.", ExpenseFormMax))
		}
		h.renderExpenseForm(w, r, http.StatusOK, fs, categories, errs)
		return
	}

	entries, errs := expenseEntries(fs, categories)
	if len(errs) > 0 {
		h.renderExpenseForm(w, r, http.StatusUnprocessableEntity, fs, categories, errs)
		return
	}
	if _, err := h.expenses.Record(ctx, entries); err != nil {
		if errors.Is(err, dashboard.ErrInvalidExpense) {
			h.renderExpenseForm(w, r, http.StatusUnprocessableEntity, fs, categories, []string{err.Error()})
			return
		}
		h.handleServerError(w, "record expenses", err)
		return
	}
	http.Redirect(w, r, "/dashboard/", http.StatusSeeOther)
}

func (h *Handler) deleteExpenseRow(w http.ResponseWriter, r *http.Request, fs *formset.Formset, categories []dashboard.ExpenseCategory, raw string) {
	rows := fs.Rows()
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 || index >= len(rows) {
		http.Error(w, "Formulario no válido", http.StatusBadRequest)
		return
	}
	var errs []string
	switch err := fs.HandleDeleteClick(rows[index].ID); {
	case errors.Is(err, formset.ErrMinForms):
		errs = append(errs, "Debe quedar al menos una fila.")
	case err != nil:
		errs = append(errs, err.Error())
	}
	h.renderExpenseForm(w, r, http.StatusOK, fs, categories, errs)
}

// expenseEntries converts the visible rows into entries. Rows left completely
// blank are skipped.
func expenseEntries(fs *formset.Formset, categories []dashboard.ExpenseCategory) ([]dashboard.ExpenseEntry, []string) {
	known := make(map[string]int64, len(categories))
	for _, c := range categories {
		known[strconv.FormatInt(c.ID, 10)] = c.ID
	}
	var entries []dashboard.ExpenseEntry
	var errs []string
	for n, row := range fs.VisibleRows() {
		date := strings.TrimSpace(row.Field("date").Value)
		description := strings.TrimSpace(row.Field("description").Value)
		amount := strings.TrimSpace(row.Field("amount").Value)
		if date == "" && description == "" && amount == "" {
			continue
		}
		label := fmt.Sprintf("Fila %d", n+1)
		var e dashboard.ExpenseEntry
		var ok bool
		if e.CategoryID, ok = known[row.Field("category").Value]; !ok {
			errs = append(errs, label+": categoría no válida.")
		}
		if description == "" {
			errs = append(errs, label+": el concepto es obligatorio.")
		}
		e.Description = description
		parsed, err := time.Parse(charts.DateLayout, date)
		if err != nil {
			errs = append(errs, label+": fecha no válida.")
		}
		e.Date = parsed
		value, err := decimal.NewFromString(strings.Replace(amount, ",", ".", 1))
		if err != nil || !value.IsPositive() {
			errs = append(errs, label+": el importe debe ser mayor que cero.")
		}
		e.Amount = value.Round(2)
		entries = append(entries, e)
	}
	if len(entries) == 0 && len(errs) == 0 {
		errs = append(errs, "Introduce al menos un gasto.")
	}
	return entries, errs
}

func (h *Handler) renderExpenseForm(w http.ResponseWriter, r *http.Request, status int, fs *formset.Formset, categories []dashboard.ExpenseCategory, errs []string) {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[strconv.FormatInt(c.ID, 10)] = c.Name
	}
	hidden := url.Values{}
	fs.ManagementForm().Encode(fs.Prefix, hidden)

	vm := ExpenseFormViewModel{
		Action:     expenseFormPath,
		ShowDelete: fs.ShowDeleteButtons(),
		CanAdd:     fs.CanAdd(),
		Errors:     errs,
	}
	for _, field := range []string{formset.TotalFormsField, formset.InitialFormsField, formset.MinNumFormsField, formset.MaxNumFormsField} {
		name := fs.Prefix + "-" + field
		vm.Hidden = append(vm.Hidden, HiddenInput{Name: name, Value: hidden.Get(name)})
	}
	for _, row := range fs.Rows() {
		rv := ExpenseRowView{Index: row.Index, Deleted: row.Deleted}
		for _, f := range row.Fields {
			in := FieldInput{
				ID:       row.InputID(f.Name),
				Name:     row.Name(f.Name),
				LabelFor: row.LabelFor(f.Name),
				Label:    f.Label,
				Kind:     f.Kind.String(),
				Value:    f.Value,
				Checked:  f.Checked,
			}
			for _, opt := range f.Options {
				in.Options = append(in.Options, SelectOption{Value: opt, Label: names[opt], Selected: opt == f.Value})
			}
			rv.Inputs = append(rv.Inputs, in)
		}
		vm.Rows = append(vm.Rows, rv)
	}

	current, _ := tenant.FromContext(r.Context())
	data := view.TemplateData{
		Title:       "Registrar gastos",
		Tenant:      current.Name,
		CurrentPath: r.URL.Path,
		Data:        vm,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/expenses.html", data); err != nil {
		h.logError("render expense form", err)
	}
}

// sameOrigin rejects cross-site form posts. Browsers that send no
// Sec-Fetch-Site header fall back to comparing Origin with Host.
func sameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return origin == ""
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
