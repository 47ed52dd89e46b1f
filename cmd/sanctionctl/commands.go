package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sanctioncore/internal/catalog"
	"sanctioncore/internal/core"
	"sanctioncore/pkg/domain"
)

type transitionFunc func(context.Context, string) (domain.Sanction, error)

// withApp opens the service for the duration of fn.
func withApp(cmd *cobra.Command, e *env, archive bool, fn func(*app) error) (err error) {
	a, err := e.open(cmd.Context(), archive)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()
	return fn(a)
}

func newSweepCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Escalate every open sanction whose deadline has passed",
		Long:  "sweep is the scheduled entry point. It prints the sweep report, including a partial one after an interrupt, and exits 1 when any candidate failed to escalate.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, e, true, func(a *app) error {
				report, err := a.svc.Sweep(cmd.Context())
				if !report.RanAt.IsZero() {
					if perr := printJSON(e.stdout, report); perr != nil && err == nil {
						err = perr
					}
				}
				if err != nil {
					return err
				}
				if report.Failed > 0 {
					return codeError(exitFailure, "%d of %d overdue sanctions failed to escalate", report.Failed, report.Candidates)
				}
				return nil
			})
		},
	}
}

func newCreateCmd(e *env) *cobra.Command {
	var req core.RandomRequest
	var severity int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sanction from a random template of the given severity",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Severity = domain.Severity(severity)
			return withApp(cmd, e, false, func(a *app) error {
				created, err := a.svc.CreateRandom(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(e.stdout, created)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&severity, "severity", 0, "Severity 1-5 (required)")
	f.IntVar(&req.DeadlineDays, "deadline-days", 0, "Days until the deadline (0 selects the default)")
	f.StringVar(&req.Reason, "reason", "", "Why the sanction was issued")
	return cmd
}

func newAssignCmd(e *env) *cobra.Command {
	var req core.SpecificRequest
	var severity, quantity int
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Create a sanction from a specific catalog template",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Severity = domain.Severity(severity)
			if cmd.Flags().Changed("quantity") {
				req.CustomQuantity = &quantity
			}
			return withApp(cmd, e, false, func(a *app) error {
				created, err := a.svc.CreateSpecific(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(e.stdout, created)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&severity, "severity", 0, "Severity 1-5 (required)")
	f.IntVar(&req.TemplateIndex, "template", 0, "Template index within the severity")
	f.IntVar(&quantity, "quantity", 0, "Override the template quantity")
	f.IntVar(&req.DeadlineDays, "deadline-days", 0, "Days until the deadline (0 selects the default)")
	f.StringVar(&req.Reason, "reason", "", "Why the sanction was issued")
	return cmd
}

func newTransitionCmd(e *env, name, short string, pick func(*app) transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, e, false, func(a *app) error {
				s, err := pick(a)(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(e.stdout, s)
			})
		},
	}
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a sanction record",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, e, false, func(a *app) error {
				return a.svc.Delete(cmd.Context(), args[0])
			})
		},
	}
}

func newCompleteAllCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "complete-all",
		Short: "Mark every open or escalated sanction done",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, e, false, func(a *app) error {
				n, err := a.svc.CompleteAll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(e.stdout, map[string]int{"count": n})
			})
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	var (
		statuses, categories []string
		deadlineBefore       string
		q                    domain.SanctionQuery
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sanctions, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range statuses {
				q.Statuses = append(q.Statuses, domain.Status(s))
			}
			for _, c := range categories {
				q.Categories = append(q.Categories, domain.Category(c))
			}
			if deadlineBefore != "" {
				at, err := time.Parse(time.RFC3339, deadlineBefore)
				if err != nil {
					return codeError(exitUsage, "--deadline-before must be RFC 3339: %v", err)
				}
				at = at.UTC()
				q.DeadlineBefore = &at
			}
			return withApp(cmd, e, false, func(a *app) error {
				page, err := a.svc.List(cmd.Context(), q)
				if err != nil {
					return err
				}
				return printJSON(e.stdout, page)
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable or comma separated)")
	f.StringSliceVar(&categories, "category", nil, "Filter by category (repeatable or comma separated)")
	f.StringVar(&deadlineBefore, "deadline-before", "", "Only sanctions due strictly before this RFC 3339 instant")
	f.IntVar(&q.Limit, "limit", 0, "Maximum rows (0 for all)")
	f.IntVar(&q.Offset, "offset", 0, "Rows to skip")
	return cmd
}

func newSummaryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count sanctions by status and category",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, e, false, func(a *app) error {
				sum, err := a.svc.Summary(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(e.stdout, sum)
			})
		},
	}
}

type templateRow struct {
	Severity domain.Severity `json:"severity"`
	Index    int             `json:"index"`
	domain.SanctionTemplate
}

func newTemplatesCmd(e *env) *cobra.Command {
	var (
		severity int
		asYAML   bool
	)
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Print the template catalog",
		Long:  "templates prints the active catalog. With --yaml the output is a catalog file that SANCTIONCORE_CATALOG_PATH accepts.",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.config()
			if err != nil {
				return err
			}
			cat, err := catalog.Resolve(cfg.CatalogPath)
			if err != nil {
				return err
			}
			if asYAML {
				return cat.WriteYAML(e.stdout)
			}
			severities := cat.Severities()
			if severity != 0 {
				sev := domain.Severity(severity)
				if !sev.Valid() {
					return domain.ErrInvalidSeverity{Severity: sev}
				}
				severities = []domain.Severity{sev}
			}
			rows := []templateRow{}
			for _, sev := range severities {
				for i, tmpl := range cat.Templates(sev) {
					rows = append(rows, templateRow{Severity: sev, Index: i, SanctionTemplate: tmpl})
				}
			}
			return printJSON(e.stdout, rows)
		},
	}
	cmd.Flags().IntVar(&severity, "severity", 0, "Only this severity")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Emit the whole catalog as YAML")
	return cmd
}
