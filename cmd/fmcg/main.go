package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fmcg-dashboard/internal/config"
	"fmcg-dashboard/internal/models"
	"fmcg-dashboard/internal/observability"
	"fmcg-dashboard/internal/services"
)

var version = "dev"

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	v         *viper.Viper
	cfgFile   string
	quiet     bool
	cfg       *config.Config
	logger    *slog.Logger
	analytics *services.Analytics
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "fmcg",
		Short: "Forecast and summarize FMCG sales exports",
		Long: `fmcg reads a CSV or Excel sales export, works out which columns hold
dates, amounts and dimensions, and prints forecasts and sales insights.

The same engine powers the web dashboard.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML or JSON, default: $CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().Int("trees", 100, "trees in the forest forecaster")
	rootCmd.PersistentFlags().Uint64("seed", 42, "random seed for the forest forecaster")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "hide the progress bar")

	// Bind flags to viper
	_ = a.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = a.v.BindPFlag("forecast.trees", rootCmd.PersistentFlags().Lookup("trees"))
	_ = a.v.BindPFlag("forecast.seed", rootCmd.PersistentFlags().Lookup("seed"))

	// Add commands
	rootCmd.AddCommand(schemaCmd(a))
	rootCmd.AddCommand(forecastCmd(a))
	rootCmd.AddCommand(insightsCmd(a))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	}

	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Logger, cmd.ErrOrStderr())

	opts := services.OptionsFrom(cfg)
	// One-shot runs keep a single dataset and never expire it mid-command.
	opts.MaxDatasets = 1
	a.analytics = services.NewAnalytics(opts, a.logger)
	return nil
}

// load reads path into the analytics store, drawing a progress bar on
// stderr while the file streams in.
func (a *app) load(cmd *cobra.Command, path string) (models.DatasetInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.DatasetInfo{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return models.DatasetInfo{}, err
	}

	var sink io.Writer = cmd.ErrOrStderr()
	if a.quiet {
		sink = io.Discard
	}
	bar := progressbar.NewOptions64(st.Size(),
		progressbar.OptionSetWriter(sink),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Reading "+filepath.Base(path)),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(sink)
		}),
	)
	defer bar.Close()

	info, err := a.analytics.Upload(cmd.Context(), io.TeeReader(f, bar), filepath.Base(path))
	if err != nil {
		return models.DatasetInfo{}, fmt.Errorf("read %s: %w", path, err)
	}
	_ = bar.Finish()

	a.logger.Info("dataset loaded", "file", path, "rows", info.Rows, "columns", len(info.Columns))
	return info, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fmcg %s\n", version)
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
