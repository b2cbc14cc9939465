package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// ReportFormat selects the output format of GenerateReport.
type ReportFormat string

const (
	FormatJSON  ReportFormat = "json"
	FormatCSV   ReportFormat = "csv"
	FormatHTML  ReportFormat = "html"
	FormatExcel ReportFormat = "excel"
)

// ValidReportFormats is the set of supported report formats.
var ValidReportFormats = []ReportFormat{FormatJSON, FormatCSV, FormatHTML, FormatExcel}

func (f ReportFormat) extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatHTML:
		return ".html"
	case FormatExcel:
		return ".xlsx"
	default:
		return ""
	}
}

// ReportRequest describes a report to generate.
type ReportRequest struct {
	Title       string
	Description string
	Format      ReportFormat
	Filter      Filter
	// OutputDir overrides the engine's report directory.
	OutputDir string
}

// Report describes a generated report file.
type Report struct {
	Path        string       `json:"path"`
	Format      ReportFormat `json:"format"`
	Entries     int          `json:"entries"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// reportDocument is the JSON report payload.
type reportDocument struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
	Statistics  *Statistics         `json:"statistics"`
	Entries     []models.AuditEntry `json:"entries"`
}

var csvHeader = []string{
	"id", "timestamp", "operation", "entity_type", "entity_id", "performed_by",
	"context", "log_level", "ip_address", "user_agent", "session_id", "details",
}

// GenerateReport writes the entries matching req.Filter, with statistics,
// to a new file and returns its location.
func (e *Engine) GenerateReport(ctx context.Context, req ReportRequest) (*Report, error) {
	ext := req.Format.extension()
	if ext == "" {
		return nil, fmt.Errorf("audit: unsupported report format %q", req.Format)
	}
	if req.Title == "" {
		req.Title = "Audit Report"
	}

	// Reports carry every matching row unless the caller asked for a page.
	limit := req.Filter.Limit
	if limit <= 0 {
		limit = -1
	}
	entries, err := e.selectEntries(ctx, req.Filter, limit, max(req.Filter.Offset, 0))
	if err != nil {
		return nil, err
	}
	stats, err := e.GetAuditStatistics(ctx, req.Filter, DefaultTopN)
	if err != nil {
		return nil, err
	}

	dir := req.OutputDir
	if dir == "" {
		dir = e.reportDir
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("audit: creating report directory: %w", err)
	}

	now := e.now().UTC()
	doc := reportDocument{
		Title:       req.Title,
		Description: req.Description,
		GeneratedAt: now,
		Statistics:  stats,
		Entries:     entries,
	}
	path := filepath.Join(dir, fmt.Sprintf("audit_report_%s%s", now.Format("20060102_150405.000000000"), ext))

	switch req.Format {
	case FormatJSON:
		err = writeJSONReport(path, doc)
	case FormatCSV:
		err = writeCSVReport(path, doc.Entries)
	case FormatHTML:
		err = writeHTMLReport(path, doc)
	case FormatExcel:
		err = writeExcelReport(path, doc)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("audit report generated", "path", path, "format", req.Format, "entries", len(entries))
	return &Report{Path: path, Format: req.Format, Entries: len(entries), GeneratedAt: now}, nil
}

func writeJSONReport(path string, doc reportDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("audit: writing report: %w", err)
	}
	return nil
}

func entryRow(entry models.AuditEntry) []string {
	details, _ := json.Marshal(entry.Details)
	return []string{
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Operation,
		entry.EntityType,
		entry.EntityID,
		entry.PerformedBy,
		entry.Context,
		string(entry.Level),
		entry.IPAddress,
		entry.UserAgent,
		entry.SessionID,
		string(details),
	}
}

func writeCSVReport(path string, entries []models.AuditEntry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("audit: creating report: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: writing report: %w", err)
	}
	for _, entry := range entries {
		if err := w.Write(entryRow(entry)); err != nil {
			_ = f.Close()
			return fmt.Errorf("audit: writing report: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("audit: writing report: %w", err)
	}
	return f.Close()
}

// markdownReport renders the report as GitHub-flavored markdown, which is
// then converted to HTML.
func markdownReport(doc reportDocument) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", mdEscape(doc.Title))
	if doc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", mdEscape(doc.Description))
	}
	fmt.Fprintf(&b, "Generated at %s. Total entries: **%d**.\n\n", doc.GeneratedAt.Format(time.RFC3339), doc.Statistics.TotalEntries)

	writeDist := func(title string, m map[string]int64) {
		if len(m) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n| Key | Count |\n| --- | ---: |\n", title)
		for _, k := range sortedKeys(m) {
			fmt.Fprintf(&b, "| %s | %d |\n", mdEscape(k), m[k])
		}
		b.WriteString("\n")
	}
	writeDist("Operations", doc.Statistics.ByOperation)
	writeDist("Entity types", doc.Statistics.ByEntityType)
	writeDist("Users", doc.Statistics.ByUser)
	writeDist("Log levels", doc.Statistics.ByLevel)

	b.WriteString("## Entries\n\n| Timestamp | Operation | Entity | Performed by | Context | Level |\n| --- | --- | --- | --- | --- | --- |\n")
	for _, entry := range doc.Entries {
		fmt.Fprintf(&b, "| %s | %s | %s:%s | %s | %s | %s |\n",
			entry.Timestamp.UTC().Format(time.RFC3339),
			mdEscape(entry.Operation),
			mdEscape(entry.EntityType), mdEscape(entry.EntityID),
			mdEscape(entry.PerformedBy),
			mdEscape(entry.Context),
			entry.Level,
		)
	}
	return b.Bytes()
}

var mdReplacer = strings.NewReplacer(
	"|", `\|`,
	"<", "&lt;",
	">", "&gt;",
	"\n", " ",
)

func mdEscape(s string) string { return mdReplacer.Replace(s) }

func writeHTMLReport(path string, doc reportDocument) error {
	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert(markdownReport(doc), &body); err != nil {
		return fmt.Errorf("audit: rendering report: %w", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", mdEscape(doc.Title))
	page.WriteString("<style>body{font-family:sans-serif}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(path, page.Bytes(), 0o600); err != nil {
		return fmt.Errorf("audit: writing report: %w", err)
	}
	return nil
}

const (
	logsSheet  = "Logs"
	statsSheet = "Statistics"
)

func writeExcelReport(path string, doc reportDocument) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audit: closing workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", logsSheet); err != nil {
		return fmt.Errorf("audit: naming sheet: %w", err)
	}
	if err := setRow(f, logsSheet, 1, csvHeader); err != nil {
		return err
	}
	for i, entry := range doc.Entries {
		if err := setRow(f, logsSheet, i+2, entryRow(entry)); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(statsSheet); err != nil {
		return fmt.Errorf("audit: adding sheet: %w", err)
	}
	row := 1
	put := func(cells ...string) error {
		err := setRow(f, statsSheet, row, cells)
		row++
		return err
	}
	if err := put("Title", doc.Title); err != nil {
		return err
	}
	if err := put("Generated at", doc.GeneratedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	if err := put("Total entries", fmt.Sprint(doc.Statistics.TotalEntries)); err != nil {
		return err
	}
	sections := []struct {
		title string
		m     map[string]int64
	}{
		{"Operation", doc.Statistics.ByOperation},
		{"Entity type", doc.Statistics.ByEntityType},
		{"User", doc.Statistics.ByUser},
		{"Context", doc.Statistics.ByContext},
		{"Log level", doc.Statistics.ByLevel},
	}
	for _, s := range sections {
		row++
		if err := put(s.title, "Count"); err != nil {
			return err
		}
		for _, k := range sortedKeys(s.m) {
			if err := put(k, fmt.Sprint(s.m[k])); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("audit: writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("audit: cell name: %w", err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("audit: writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
