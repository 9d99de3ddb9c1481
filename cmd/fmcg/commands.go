package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fmcg-dashboard/internal/forecast"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/services"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// queryFlags are the view options shared by forecast and insights.
type queryFlags struct {
	granularity string
	metric      string
	from        string
	to          string
	filters     []string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.granularity, "granularity", "g", "day", "period length (day, week, month)")
	cmd.Flags().StringVarP(&q.metric, "metric", "m", "amount", "metric to aggregate (amount, quantity, orders, rows)")
	cmd.Flags().StringVar(&q.from, "from", "", "first day to include")
	cmd.Flags().StringVar(&q.to, "to", "", "last day to include")
	cmd.Flags().StringArrayVar(&q.filters, "filter", nil, "dimension filter, e.g. city=Pune,Delhi (repeatable)")
}

func (q *queryFlags) query() (services.Query, error) {
	var out services.Query
	var err error
	if out.Granularity, err = models.ParseGranularity(q.granularity, models.Day); err != nil {
		return out, err
	}
	if out.Metric, err = models.ParseMetric(q.metric, models.MetricAmount); err != nil {
		return out, err
	}
	if q.from != "" {
		if out.From, err = models.ParseTime(q.from); err != nil {
			return out, fmt.Errorf("--from: %w", err)
		}
	}
	if q.to != "" {
		if out.To, err = models.ParseTime(q.to); err != nil {
			return out, fmt.Errorf("--to: %w", err)
		}
	}
	for _, raw := range q.filters {
		name, values, ok := strings.Cut(raw, "=")
		dim := models.Field(strings.ToLower(strings.TrimSpace(name)))
		if !ok || !dim.IsDimension() {
			return out, fmt.Errorf("invalid filter %q, want <dimension>=<value>[,<value>]", raw)
		}
		if out.Filters == nil {
			out.Filters = make(map[models.Field][]string)
		}
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out.Filters[dim] = append(out.Filters[dim], v)
			}
		}
	}
	return out, nil
}

func schemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <file>",
		Short: "Show how columns map to sales fields",
		Long:  `Resolve the columns of a CSV or Excel export to the canonical sales fields and list the fields that could not be found.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			report, err := a.analytics.Resolution(info.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d rows, %d columns\n\n", info.Name, info.Rows, len(info.Columns))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				headerStyle.Render("Field"),
				headerStyle.Render("Column"),
				headerStyle.Render("Match"))
			for _, m := range report.Matches {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Field, m.Column, m.Method)
			}
			for _, f := range models.AllFields {
				if _, ok := report.Schema[f]; !ok {
					fmt.Fprintf(w, "%s\t%s\t\n", f, mutedStyle.Render("(not found)"))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, f := range report.Ambiguous {
				fmt.Fprintf(out, "ambiguous: several columns could be %s\n", f)
			}
			return nil
		},
	}
}

func forecastCmd(a *app) *cobra.Command {
	var (
		q        queryFlags
		strategy string
		horizon  int
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "forecast <file>",
		Short: "Forecast a sales series as CSV",
		Long: `Aggregate the export into a series and project it forward. The result is
written as date,predicted[,lower,upper] rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			strat, err := forecast.ParseStrategy(strategy, forecast.Strategy(a.cfg.Forecast.DefaultStrategy))
			if err != nil {
				return err
			}

			info, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			f, err := a.analytics.Forecast(cmd.Context(), info.ID, services.ForecastQuery{
				Query:    query,
				Strategy: strat,
				Horizon:  horizon,
			})
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			if err := forecast.WriteCSV(out, f); err != nil {
				return fmt.Errorf("write forecast: %w", err)
			}
			a.logger.Info("forecast written",
				"strategy", f.Strategy,
				"periods", len(f.Points),
				"history", f.History,
			)
			return nil
		},
	}

	q.register(cmd)
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "forecast strategy (seasonal, tree; default from config)")
	cmd.Flags().IntVarP(&horizon, "horizon", "n", 0, "periods to forecast (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the CSV to a file instead of stdout")
	return cmd
}

func insightsCmd(a *app) *cobra.Command {
	var (
		q          queryFlags
		dimensions []string
		top        int
		threshold  float64
		noForecast bool
		horizon    int
	)

	cmd := &cobra.Command{
		Use:   "insights <file>",
		Short: "Summarize growth and top performers",
		Long:  `Print growth figures, top and low performing categories per dimension and, unless disabled, a forecast summary.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			iq := services.InsightQuery{
				ForecastQuery: services.ForecastQuery{Query: query, Horizon: horizon},
				TopN:          top,
				WithForecast:  !noForecast,
			}
			for _, d := range dimensions {
				f := models.Field(strings.ToLower(d))
				if !f.IsDimension() {
					return fmt.Errorf("unknown dimension %q", d)
				}
				iq.Dimensions = append(iq.Dimensions, f)
			}
			if cmd.Flags().Changed("threshold") {
				iq.Threshold = &threshold
			}

			info, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			sum, err := a.analytics.Insights(cmd.Context(), info.ID, iq)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), sum)
		},
	}

	q.register(cmd)
	cmd.Flags().StringSliceVarP(&dimensions, "dimension", "d", nil, "dimensions to rank (default: all found)")
	cmd.Flags().IntVarP(&top, "top", "t", 10, "categories per ranking")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "low performer cut-off (default: half the mean)")
	cmd.Flags().BoolVar(&noForecast, "no-forecast", false, "skip the forecast summary")
	cmd.Flags().IntVarP(&horizon, "horizon", "n", 0, "periods to forecast (default from config)")
	return cmd
}

func printSummary(out io.Writer, sum models.Summary) error {
	fmt.Fprintf(out, "%s %+.1f%%\n", headerStyle.Render("Growth:"), sum.Growth)
	if sum.WeekOverWeek != nil {
		fmt.Fprintf(out, "%s %+.1f%%\n", headerStyle.Render("Week over week:"), *sum.WeekOverWeek)
	}
	if sum.MonthOverMonth != nil {
		fmt.Fprintf(out, "%s %+.1f%%\n", headerStyle.Render("Month over month:"), *sum.MonthOverMonth)
	}
	if f := sum.Forecast; f != nil {
		fmt.Fprintf(out, "%s total %.2f, mean %.2f, peak %.2f on %s\n",
			headerStyle.Render("Forecast:"), f.Total, f.Mean, f.PeakValue, f.PeakPeriod.Format("2006-01-02"))
	}

	for _, r := range sum.Rankings {
		fmt.Fprintf(out, "\n%s\n", headerStyle.Render("Top "+string(r.Dimension)+" ("+r.Column+")"))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		for i, c := range r.Top {
			fmt.Fprintf(w, "%d.\t%s\t%.2f\t\n", i+1, c.Category, c.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(r.LowPerformers) > 0 {
			names := make([]string, len(r.LowPerformers))
			for i, c := range r.LowPerformers {
				names[i] = c.Category
			}
			fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("low performers:"), strings.Join(names, ", "))
		}
	}
	return nil
}
