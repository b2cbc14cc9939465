package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/models"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query, summarize and maintain the audit log",
	}
	cmd.AddCommand(auditQueryCmd(), auditStatsCmd(), auditReportCmd(), auditCleanupCmd())
	return cmd
}

// filterFlags holds the audit filter flags shared by several subcommands.
type filterFlags struct {
	operations  []string
	entityTypes []string
	entityIDs   []string
	levels      []string
	performedBy string
	context     string
	search      string
	startDate   string
	endDate     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.operations, "operation", nil, "operations to include")
	cmd.Flags().StringSliceVar(&f.entityTypes, "entity-type", nil, "entity types to include")
	cmd.Flags().StringSliceVar(&f.entityIDs, "entity-id", nil, "entity ids to include")
	cmd.Flags().StringSliceVar(&f.levels, "level", nil, "log levels to include")
	cmd.Flags().StringVar(&f.performedBy, "performed-by", "", "actor")
	cmd.Flags().StringVar(&f.context, "context", "", "alias context")
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive text search")
	cmd.Flags().StringVar(&f.startDate, "since", "", "start date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.endDate, "until", "", "end date (RFC 3339 or YYYY-MM-DD)")
}

// filter builds an audit.Filter through the same parser the HTTP API uses.
func (f *filterFlags) filter() (audit.Filter, error) {
	v := url.Values{}
	set := func(key string, values ...string) {
		for _, s := range values {
			if s != "" {
				v.Add(key, s)
			}
		}
	}
	set("operation", f.operations...)
	set("entity_type", f.entityTypes...)
	set("entity_id", f.entityIDs...)
	set("level", f.levels...)
	set("performed_by", f.performedBy)
	set("context", f.context)
	set("search", f.search)
	set("start_date", f.startDate)
	set("end_date", f.endDate)
	return audit.FilterFromValues(v)
}

func openAudit(cmd *cobra.Command, logger *slog.Logger) (*audit.Engine, error) {
	eng, err := audit.Open(cmd.Context(), audit.Options{Path: cfg.Audit.Path, ReportDir: cfg.Audit.ReportDir}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening audit store: %w", err)
	}
	return eng, nil
}

func auditQueryCmd() *cobra.Command {
	var (
		ff        filterFlags
		sortBy    string
		sortOrder string
		limit     int
		offset    int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := openAudit(cmd, logger)
			if err != nil {
				return fmt.Errorf("audit query: %w", err)
			}
			defer func() { _ = eng.Close() }()

			f, err := ff.filter()
			if err != nil {
				return fmt.Errorf("audit query: %w", err)
			}
			f.SortBy, f.SortOrder, f.Limit, f.Offset = sortBy, sortOrder, limit, offset

			res, err := eng.QueryAuditLogs(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("audit query: %w", err)
			}
			if asJSON {
				return printJSON(res)
			}
			for _, e := range res.Entries {
				fmt.Printf("%s %-8s %-26s %-12s %-30s by %s\n",
					e.Timestamp.Format(time.RFC3339), e.Level, e.Operation, e.EntityType, e.EntityID, e.PerformedBy)
			}
			fmt.Printf("Showing %d of %d entries\n", len(res.Entries), res.Total)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&sortBy, "sort-by", "timestamp", "sort column")
	cmd.Flags().StringVar(&sortOrder, "sort-order", "desc", "asc or desc")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func auditStatsCmd() *cobra.Command {
	var (
		ff   filterFlags
		topN int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := openAudit(cmd, logger)
			if err != nil {
				return fmt.Errorf("audit stats: %w", err)
			}
			defer func() { _ = eng.Close() }()

			f, err := ff.filter()
			if err != nil {
				return fmt.Errorf("audit stats: %w", err)
			}
			stats, err := eng.GetAuditStatistics(cmd.Context(), f, topN)
			if err != nil {
				return fmt.Errorf("audit stats: %w", err)
			}
			return printJSON(stats)
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&topN, "top", audit.DefaultTopN, "length of the top-N lists")
	return cmd
}

func auditReportCmd() *cobra.Command {
	var (
		ff          filterFlags
		format      string
		title       string
		description string
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an audit report file (json, csv, html or excel)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := openAudit(cmd, logger)
			if err != nil {
				return fmt.Errorf("audit report: %w", err)
			}
			defer func() { _ = eng.Close() }()

			f, err := ff.filter()
			if err != nil {
				return fmt.Errorf("audit report: %w", err)
			}
			rep, err := eng.GenerateReport(cmd.Context(), audit.ReportRequest{
				Title:       title,
				Description: description,
				Format:      audit.ReportFormat(strings.ToLower(format)),
				Filter:      f,
				OutputDir:   outputDir,
			})
			if err != nil {
				return fmt.Errorf("audit report: %w", err)
			}
			fmt.Printf("Wrote %s report with %d entries to %s\n", rep.Format, rep.Entries, rep.Path)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(audit.FormatHTML), "json, csv, html or excel")
	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().StringVar(&description, "description", "", "report description")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the report (default audit.report_dir)")
	return cmd
}

func auditCleanupCmd() *cobra.Command {
	var (
		days  int
		level string
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit entries past their retention",
		Long: `Without --days, each log level is purged with its configured retention
(audit.retention). With --days, entries older than that are deleted,
optionally only for one --level.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			eng, err := openAudit(cmd, logger)
			if err != nil {
				return fmt.Errorf("audit cleanup: %w", err)
			}
			defer func() { _ = eng.Close() }()

			if cmd.Flags().Changed("days") {
				n, cleanErr := eng.CleanupOldLogs(cmd.Context(), days, models.LogLevel(level))
				if cleanErr != nil {
					return fmt.Errorf("audit cleanup: %w", cleanErr)
				}
				fmt.Printf("Deleted %d entries\n", n)
				return nil
			}

			deleted, err := eng.CleanupByRetention(cmd.Context(), retentionPolicy())
			if err != nil {
				return fmt.Errorf("audit cleanup: %w", err)
			}
			for _, l := range models.ValidLogLevels {
				if n, ok := deleted[l]; ok {
					fmt.Printf("  %-8s %s\n", l, strconv.FormatInt(n, 10))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "delete entries older than this many days")
	cmd.Flags().StringVar(&level, "level", "", "only delete entries of this level (with --days)")
	return cmd
}
