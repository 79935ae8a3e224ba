package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/charts/svg"
	dashclient "github.com/zento-erp/zento/internal/dashboard/client"
)

// SnapshotOptions configures a dashboard snapshot run.
type SnapshotOptions struct {
	BaseURL    string
	Host       string
	Period     string
	Level      string
	OutDir     string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient *http.Client
}

// SnapshotCLI renders the business line and expense charts of a running
// server from its JSON API.
type SnapshotCLI struct {
	logger    *slog.Logger
	formatter *charts.Formatter
	now       func() time.Time
}

// NewSnapshotCLI constructs the command. A nil formatter uses es-ES and EUR.
func NewSnapshotCLI(logger *slog.Logger, formatter *charts.Formatter) *SnapshotCLI {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if formatter == nil {
		formatter = charts.DefaultFormatter()
	}
	return &SnapshotCLI{logger: logger, formatter: formatter, now: time.Now}
}

type snapshotResult struct {
	Period        string                        `json:"period"`
	Level         string                        `json:"level,omitempty"`
	BusinessLines []charts.BusinessLinePoint    `json:"business_lines_data"`
	Expenses      []charts.ExpenseCategoryPoint `json:"expenses_data"`
	Files         []string                      `json:"files,omitempty"`
}

// Run executes the snapshot and returns the process exit code: 0 on success,
// 1 when the server or the filesystem fails and 2 for invalid options.
func (c *SnapshotCLI) Run(ctx context.Context, opts SnapshotOptions) int {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if err := validateSnapshotOptions(opts); err != nil {
		fmt.Fprintf(stderr, "snapshot: %v\n", err)
		return 2
	}

	client := dashclient.New(opts.BaseURL, opts.Host, opts.HTTPClient)
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(stderr, "snapshot: server unreachable: %v\n", err)
		return 1
	}

	now := c.now()
	filter := charts.Filter{Chart: string(charts.ChartBusinessLines), Period: opts.Period, Level: opts.Level}
	q := charts.QueryFor(filter, now)
	expenses, err := client.Expenses(ctx, q.Start, q.End)
	if err != nil {
		fmt.Fprintf(stderr, "snapshot: %v\n", err)
		return 1
	}

	page := charts.DashboardPage()
	ctrl, err := charts.New(charts.Dependencies{
		Library:   svg.NewLibrary(c.logger, nil),
		Surfaces:  page,
		Theme:     charts.DefaultTheme(),
		Formatter: c.formatter,
		Source:    client,
		Logger:    c.logger,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		fmt.Fprintf(stderr, "snapshot: %v\n", err)
		return 1
	}
	defer ctrl.Destroy()
	ctrl.Init(charts.Payload{Expenses: expenses})
	if _, err := ctrl.RefreshBusinessLines(ctx, filter); err != nil {
		fmt.Fprintf(stderr, "snapshot: %v\n", err)
		return 1
	}

	result := snapshotResult{
		Period:        charts.PeriodLabel(opts.Period),
		Level:         opts.Level,
		BusinessLines: ctrl.BusinessLines(),
		Expenses:      expenses,
	}
	if opts.OutDir != "" {
		files, err := writeCharts(opts.OutDir, page)
		if err != nil {
			fmt.Fprintf(stderr, "snapshot: %v\n", err)
			return 1
		}
		result.Files = files
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "snapshot: encode: %v\n", err)
			return 1
		}
		return 0
	}
	c.printText(stdout, result)
	return 0
}

func validateSnapshotOptions(opts SnapshotOptions) error {
	if opts.BaseURL == "" {
		return errors.New("base url required")
	}
	switch opts.Period {
	case "", "all", "30", "90", "365":
	default:
		return fmt.Errorf("unsupported period %q", opts.Period)
	}
	switch opts.Level {
	case "", "1", "2", "3":
	default:
		return fmt.Errorf("unsupported level %q", opts.Level)
	}
	return nil
}

func writeCharts(dir string, page *charts.Page) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	contents := page.Contents()
	ids := make([]string, 0, len(contents))
	for id, content := range contents {
		if content != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	files := make([]string, 0, len(ids))
	for _, id := range ids {
		path := filepath.Join(dir, id+".svg")
		if err := os.WriteFile(path, []byte(contents[id]), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func (c *SnapshotCLI) printText(w io.Writer, result snapshotResult) {
	fmt.Fprintf(w, "Ingresos por línea de negocio (%s)\n", result.Period)
	if len(result.BusinessLines) == 0 {
		fmt.Fprintln(w, "  sin datos")
	}
	for _, line := range result.BusinessLines {
		fmt.Fprintf(w, "  %-32s %16s\n", line.Name, c.formatter.FormatCurrency(line.Ingresos))
	}
	fmt.Fprintln(w, "Gastos por categoría")
	if len(result.Expenses) == 0 {
		fmt.Fprintln(w, "  sin datos")
	}
	for _, cat := range result.Expenses {
		fmt.Fprintf(w, "  %-32s %16s\n", cat.Name, c.formatter.FormatCurrency(cat.Total))
	}
	for _, file := range result.Files {
		fmt.Fprintf(w, "wrote %s\n", file)
	}
}
