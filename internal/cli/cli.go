// Package cli implements the command-line interface for the commitment planner.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/commitment-planner/internal/config"
	"github.com/commitment-planner/internal/controller"
	"github.com/commitment-planner/internal/domain"
	"github.com/commitment-planner/internal/web"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

const dateLayout = "2006-01-02"

// CLI encapsulates the command-line interface
type CLI struct {
	rootCmd       *cobra.Command
	cfg           *config.Config
	configPath    string
	logLevel      string
	deterministic bool
}

// New creates a new CLI instance
func New() *CLI {
	cli := &CLI{}
	cli.buildCommands()
	return cli
}

// Execute runs the CLI
func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

// buildCommands constructs the command tree
func (c *CLI) buildCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "commitment-planner",
		Short: "Cloud consumption planner and grant budget tracker",
		Long: `Plan how to buy cloud compute for a set of recurring workloads.

The planner compares reserved capacity, savings commitments, spot and
on-demand mixes, scores each scenario and recommends the best fit.
Grant budgets are split into periods, tracked against spend and
forecast to the end of the grant.`,
		Version:       web.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", os.Getenv(config.EnvConfigFile), "Path to a config.yaml (default: ./config.yaml when present)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flags.BoolVar(&c.deterministic, "deterministic", false, "Issue sequential IDs so output is reproducible")

	c.rootCmd.AddCommand(c.planCmd())
	c.rootCmd.AddCommand(c.periodsCmd())
	c.rootCmd.AddCommand(c.forecastCmd())
	c.rootCmd.AddCommand(c.familiesCmd())
	c.rootCmd.AddCommand(c.webCmd())
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.deterministic {
		cfg.Optimizer.DeterministicIDs = true
	}
	c.cfg = cfg
	return nil
}

// newController builds a controller that logs to the command's stderr
func (c *CLI) newController(cmd *cobra.Command, opts ...controller.Option) *controller.Controller {
	logger := controller.NewLoggerTo(c.cfg, "cli", cmd.ErrOrStderr())
	opts = append([]controller.Option{controller.WithLogger(logger)}, opts...)
	return controller.New(c.cfg, opts...)
}

// planCmd creates the plan command
func (c *CLI) planCmd() *cobra.Command {
	var (
		file         string
		grantFile    string
		horizon      string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Recommend a purchase plan for a set of workloads",
		Long: `Read workloads, constraints and discounts from a YAML file and
recommend the best purchase mix.

Examples:
  # Plan from a workload file
  commitment-planner plan -f workloads.yaml

  # Plan over three years and check the impact on a grant
  commitment-planner plan -f workloads.yaml --horizon 3yr --grant grant.yaml

  # Machine readable output
  commitment-planner plan -f workloads.yaml --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req controller.PlanRequest
			if err := readInput(cmd, file, &req); err != nil {
				return err
			}
			if horizon != "" {
				term := domain.ParseCommitmentTerm(horizon)
				if term == domain.NoCommitment {
					return domain.NewValidationError("horizon", fmt.Sprintf("unknown planning horizon %q", horizon))
				}
				req.PlanningHorizon = term
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			ctrl := c.newController(cmd)
			defer ctrl.Close()

			if grantFile != "" {
				var grant domain.Grant
				if err := readInput(cmd, grantFile, &grant); err != nil {
					return err
				}
				created, err := ctrl.CreateGrant(ctx, &grant)
				if err != nil {
					return err
				}
				req.Grant = nil
				req.GrantID = created.Grant.ID
			}

			resp, err := ctrl.Plan(ctx, req)
			if err != nil {
				return err
			}

			if outputFormat == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			return displayPlan(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Workload YAML file (- for stdin)")
	cmd.Flags().StringVar(&grantFile, "grant", "", "Grant YAML file used for budget impact")
	cmd.Flags().StringVar(&horizon, "horizon", "", "Planning horizon (1yr, 3yr); defaults to the configured horizon")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputTable, "Output format (table, json)")
	cmd.MarkFlagRequired("file")

	return cmd
}

// periodsCmd creates the periods command
func (c *CLI) periodsCmd() *cobra.Command {
	var (
		file         string
		spend        float64
		kind         string
		asOf         string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Split a grant into budget periods and apply spend",
		Long: `Generate the budget periods of a grant and optionally record spend
against the period containing --as-of.

Examples:
  # Show the monthly periods of a grant
  commitment-planner periods -f grant.yaml

  # Record $950 spent on 15 March and show any alerts
  commitment-planner periods -f grant.yaml --spend 950 --as-of 2025-03-15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var grant domain.Grant
			if err := readInput(cmd, file, &grant); err != nil {
				return err
			}

			var opts []controller.Option
			if asOf != "" {
				t, err := time.Parse(dateLayout, asOf)
				if err != nil {
					return domain.NewValidationError("as-of", fmt.Sprintf("expected YYYY-MM-DD: %v", err))
				}
				// noon keeps the date stable across time zones
				at := t.Add(12 * time.Hour)
				opts = append(opts, controller.WithClock(func() time.Time { return at }))
			}

			ctx := context.Background()
			ctrl := c.newController(cmd, opts...)
			defer ctrl.Close()

			created, err := ctrl.CreateGrant(ctx, &grant)
			if err != nil {
				return err
			}

			result := periodsResult{Grant: created.Grant, Summary: created.Summary, Alerts: []domain.BudgetAlert{}}
			if cmd.Flags().Changed("spend") {
				spent, err := ctrl.RecordSpend(ctx, controller.SpendRequest{GrantID: created.Grant.ID, Amount: spend, Kind: kind})
				if err != nil {
					return err
				}
				current, err := ctrl.GetGrant(ctx, created.Grant.ID)
				if err != nil {
					return err
				}
				result = periodsResult{Grant: current.Grant, Summary: current.Summary, Alerts: spent.Alerts}
			}

			if outputFormat == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return displayPeriods(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Grant YAML file (- for stdin)")
	cmd.Flags().Float64Var(&spend, "spend", 0, "Amount to record against the current period")
	cmd.Flags().StringVar(&kind, "kind", controller.SpendActual, "Spend kind (spent, committed, pending)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date used to pick the current period (YYYY-MM-DD, default today)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputTable, "Output format (table, json)")
	cmd.MarkFlagRequired("file")

	return cmd
}

type periodsResult struct {
	Grant   *domain.Grant        `json:"grant"`
	Summary domain.GrantSummary  `json:"summary"`
	Alerts  []domain.BudgetAlert `json:"alerts"`
}

// forecastCmd creates the forecast command
func (c *CLI) forecastCmd() *cobra.Command {
	var (
		file         string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project grant spend from monthly history",
		Long: `Project total spend at the end of a grant from trailing monthly spend.

The input file holds history, current_spent, remaining_months and allocation.

Examples:
  commitment-planner forecast -f spend-history.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req controller.ForecastRequest
			if err := readInput(cmd, file, &req); err != nil {
				return err
			}

			ctrl := c.newController(cmd)
			defer ctrl.Close()

			resp, err := ctrl.Forecast(context.Background(), req)
			if err != nil {
				return err
			}
			if outputFormat == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			return displayForecast(cmd.OutOrStdout(), resp.Forecast, req.Allocation)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Spend history YAML file (- for stdin)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputTable, "Output format (table, json)")
	cmd.MarkFlagRequired("file")

	return cmd
}

// familiesCmd creates the families command
func (c *CLI) familiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the priced instance families",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := c.newController(cmd)
			defer ctrl.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FAMILY\tINSTANCE TYPE\tvCPU\tMEMORY\tGPU\tCLASS\tON-DEMAND $/HR")
			fmt.Fprintln(w, "------\t-------------\t----\t------\t---\t-----\t--------------")
			for _, f := range ctrl.Families() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.0f GiB\t%d\t%s\t%.3f\n",
					f.Family, f.InstanceType, f.VCPU, f.MemoryGiB, f.GPUCount, f.Class, f.OnDemandHourlyRate)
			}
			return w.Flush()
		},
	}
}

// webCmd creates the web API command
func (c *CLI) webCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the planner HTTP API",
		Long: `Start the HTTP API. Prometheus metrics are served on /metrics.

Examples:
  # Start on the configured port (default 8000)
  commitment-planner web

  # Start on a custom port
  commitment-planner web --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}

			server, err := web.NewServer(c.cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "🌐 Planner API listening on http://localhost:%d (Ctrl+C to stop)\n", c.cfg.Server.Port)
			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "Port to run the web server on")

	return cmd
}

// readInput decodes a YAML (or JSON) file; "-" reads stdin
func readInput(cmd *cobra.Command, path string, v interface{}) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return domain.NewValidationError("file", fmt.Sprintf("failed to parse %s: %v", path, err))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayPlan(out io.Writer, resp *controller.PlanResponse) error {
	plan := resp.Plan
	fmt.Fprintf(out, "✅ Plan %s (%s horizon)\n", plan.ID, plan.PlanningHorizon)
	fmt.Fprintf(out, "   %s\n\n", resp.Summary)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FAMILY\tQTY\tCATEGORY\tTERM\tPAYMENT\t$/HR\tUTIL\tRISK\tWORKLOADS")
	fmt.Fprintln(w, "------\t---\t--------\t----\t-------\t----\t----\t----\t---------")
	for _, p := range plan.RecommendedPurchases {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%.4f\t%.0f%%\t%s\t%s\n",
			p.InstanceFamily, p.Quantity, p.Category, orDash(string(p.Commitment)), orDash(string(p.Payment)),
			p.HourlyCost, p.EstimatedUtilization, p.Risk, strings.Join(p.CoveredWorkloads, ","))
	}
	w.Flush()

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "COST\tMONTHLY\tANNUAL\t")
	for _, cat := range domain.AllPurchaseCategories {
		if line, ok := plan.CostBreakdown.ByCategory[cat]; ok {
			fmt.Fprintf(w, "%s\t$%.2f\t$%.2f\t\n", cat, line.MonthlyCost, line.AnnualCost)
		}
	}
	fmt.Fprintf(w, "total\t$%.2f\t$%.2f\t\n", plan.CostBreakdown.Total.MonthlyCost, plan.CostBreakdown.Total.AnnualCost)
	fmt.Fprintf(w, "all on-demand\t$%.2f\t$%.2f\t\n", plan.CostBreakdown.Baseline.MonthlyCost, plan.CostBreakdown.Baseline.AnnualCost)
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "💰 Savings: $%.2f/month, $%.2f/year (%.1f%%)\n",
		plan.VsAllOnDemandSavings.Monthly, plan.VsAllOnDemandSavings.Annual, plan.VsAllOnDemandSavings.Percentage)
	if plan.NetMonthlyCost != plan.CostBreakdown.Total.MonthlyCost {
		fmt.Fprintf(out, "   Net of credits: $%.2f/month\n", plan.NetMonthlyCost)
	}
	fmt.Fprintf(out, "⚡ Risk: %s overall, commitment %s, spot interruption %.0f%%\n",
		plan.Risk.Overall, plan.Risk.CommitmentRisk, plan.Risk.SpotInterruption*100)
	fmt.Fprintf(out, "📊 Confidence: %.0f%% (%d scenarios evaluated)\n",
		plan.Optimization.ConfidenceLevel, plan.Optimization.Evaluated)

	if impact := plan.BudgetImpact; impact != nil {
		fmt.Fprintf(out, "🎓 Budget impact on %s: %.1f%% of $%.2f monthly allocation",
			impact.GrantID, impact.ProjectedUtilization, impact.MonthlyAllocation)
		if impact.ExceedsAllocation {
			fmt.Fprint(out, " (exceeds allocation)")
		}
		fmt.Fprintln(out)
	}

	printList(out, "Recommendations", plan.Recommendations)
	printList(out, "Insights", plan.Insights)
	printList(out, "⚠️  Warnings", plan.Warnings)
	return nil
}

func displayPeriods(out io.Writer, result periodsResult) error {
	g := result.Grant
	fmt.Fprintf(out, "Grant %s: %d %s periods from %s to %s\n\n",
		g.ID, len(g.Periods), g.BudgetPeriodType, g.StartDate.Format(dateLayout), g.EndDate.Format(dateLayout))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tSTART\tEND\tALLOCATED\tSPENT\tCOMMITTED\tREMAINING\tUTIL\tSTATUS")
	fmt.Fprintln(w, "------\t-----\t---\t---------\t-----\t---------\t---------\t----\t------")
	for _, p := range g.Periods {
		fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\t$%.2f\t$%.2f\t$%.2f\t%.1f%%\t%s\n",
			p.Name, p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout),
			p.AllocatedAmount, p.SpentAmount, p.CommittedAmount, p.RemainingBudget, p.UtilizationRate, p.Status)
	}
	w.Flush()

	s := result.Summary
	fmt.Fprintf(out, "\nTotal: $%.2f allocated, $%.2f spent, $%.2f committed, %.1f%% used, %d periods at risk\n",
		s.TotalAllocated, s.TotalSpent, s.TotalCommitted, s.UtilizationRate, s.AtRiskPeriods)

	for _, a := range result.Alerts {
		icon := "⚠️ "
		if a.Severity == domain.SeverityCritical {
			icon = "🚨"
		}
		fmt.Fprintf(out, "\n%s %s %s alert: %s\n", icon, strings.ToUpper(string(a.Severity)), a.Type, a.Message)
		for _, action := range a.SuggestedActions {
			fmt.Fprintf(out, "      • %s\n", action)
		}
	}
	return nil
}

func displayForecast(out io.Writer, f *domain.BudgetForecast, allocation float64) error {
	fmt.Fprintf(out, "📈 Forecast (%s)\n", f.Method)
	fmt.Fprintf(out, "   Average monthly spend: $%.2f\n", f.AvgMonthlySpend)
	fmt.Fprintf(out, "   Projected total:       $%.2f\n", f.ProjectedTotal)
	fmt.Fprintf(out, "   Weighted projection:   $%.2f\n", f.WeightedProjected)
	fmt.Fprintf(out, "   Confidence:            %.1f%%\n", f.Confidence)
	if f.ExceedsAllocation {
		fmt.Fprintf(out, "   ⚠️  Exceeds allocation of $%.2f", allocation)
		if f.ExhaustionDate != nil {
			fmt.Fprintf(out, ", exhausted around %s", f.ExhaustionDate.Format(dateLayout))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tMULTIPLIER\tPROBABILITY\tPROJECTED")
	fmt.Fprintln(w, "--------\t----------\t-----------\t---------")
	for _, s := range f.Scenarios {
		fmt.Fprintf(w, "%s\t%.2f\t%.0f%%\t$%.2f\n", s.Name, s.Multiplier, s.Probability*100, s.ProjectedTotal)
	}
	return w.Flush()
}

func printList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "  • %s\n", item)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
