package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"plannercolors/cmd/plannercolors/ui"
	"plannercolors/internal/aggregator"
	"plannercolors/internal/dom/htmldoc"
	"plannercolors/internal/feed"
	"plannercolors/internal/palette"
	"plannercolors/internal/render"
)

var (
	payloadDir string
	htmlPath   string
	outPath    string
	rawReport  bool
)

// renderCmd applies one render tick to a saved page
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Decorate a saved timeline page from captured payloads",
	Long: `Loads the four collections from --payloads, parses the saved page at
--html and runs a single render tick over it: task bars are painted with
their bucket colors and label cells are injected into grid rows. The
decorated page is written to --out (stdout by default).`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

// inspectCmd prints the joined model
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the joined model and its color assignments",
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

// watchCmd shows the model live while payload files change
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a payload directory and browse the live model",
	Long: `Loads the payload directory, then watches it for rewritten collection
files. Every change is delivered to the aggregator exactly as an
intercepted response would be, and the table refreshes on its own.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

// paletteCmd prints the color tables
var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Print the curated palette and the fallback pool",
	Args:  cobra.NoArgs,
	RunE:  runPalette,
}

func init() {
	for _, c := range []*cobra.Command{renderCmd, inspectCmd, watchCmd} {
		c.Flags().StringVarP(&payloadDir, "payloads", "p", ".", "Directory holding tasks.json, buckets.json, labels.json and labelassociations.json")
	}
	renderCmd.Flags().StringVar(&htmlPath, "html", "", "Saved timeline page")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	_ = renderCmd.MarkFlagRequired("html")
	inspectCmd.Flags().BoolVar(&rawReport, "raw", false, "Print markdown without terminal rendering")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// offlineContext bounds an offline command by --timeout.
func offlineContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(commandContext(cmd))
	}
	return context.WithTimeout(commandContext(cmd), timeout)
}

// loadPayloads feeds every collection file in dir into a fresh aggregator.
func loadPayloads(dir string) (*aggregator.Aggregator, error) {
	agg := aggregator.New()
	n, err := feed.New(dir, agg, 0).LoadAll()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no payloads found in %s", dir)
	}
	if s := agg.Snapshot(); !s.Ready() {
		logger.Warn("Payload directory is incomplete", zap.String("dir", dir), zap.String("seen", collectionCounts(s)))
	}
	return agg, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, cancel := offlineContext(cmd)
	defer cancel()

	agg, err := loadPayloads(payloadDir)
	if err != nil {
		return err
	}

	f, err := os.Open(htmlPath)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	doc, err := htmldoc.Parse(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	loop := render.New(agg, palette.NewAllocator(), doc, renderOptions(cfg))
	report := loop.Tick(ctx)

	var out io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		out = file
	}
	if err := doc.Render(out); err != nil {
		return fmt.Errorf("write page: %w", err)
	}

	logger.Info("Rendered",
		zap.Int("painted", report.Painted),
		zap.Int("bars_missing", report.BarsMissing),
		zap.Int("uncolored", report.Uncolored),
		zap.Int("injected", report.Injected),
		zap.Bool("grid_missing", report.GridMissing),
		zap.Bool("not_ready", report.NotReady),
		zap.Int("errors", report.Errors))
	if report.NotReady {
		fmt.Fprintln(cmd.ErrOrStderr(), "collections incomplete, page left unchanged")
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "painted %d bars (%d missing, %d uncolored), injected %d label cells\n",
		report.Painted, report.BarsMissing, report.Uncolored, report.Injected)
	if report.Errors > 0 {
		return fmt.Errorf("render finished with %d errors", report.Errors)
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	agg, err := loadPayloads(payloadDir)
	if err != nil {
		return err
	}
	md := buildReport(agg.Snapshot(), palette.NewAllocator())
	if rawReport {
		_, err := io.WriteString(cmd.OutOrStdout(), md)
		return err
	}

	style := "light"
	if ui.DetectTheme().IsDark {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agg := aggregator.New()
	dir := feed.New(payloadDir, agg, feed.DefaultDebounce)
	if _, err := dir.LoadAll(); err != nil {
		logger.Warn("Initial load", zap.Error(err))
	}
	if err := dir.Start(ctx); err != nil {
		return err
	}
	defer dir.Stop()

	p := tea.NewProgram(ui.NewModelPage(agg, payloadDir), tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})
	err := g.Wait()

	st := dir.Stats()
	logger.Info("Watch stopped",
		zap.Int("delivered", st.Delivered),
		zap.Int("rejected", st.Rejected),
		zap.Int("errors", st.Errors))
	return err
}

func runPalette(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()
	colors := palette.NewAllocator()

	fmt.Fprintln(out, styles.Title.Render("Curated palette"))
	for i := range palette.Size() {
		c, _ := colors.ForLabelIndex(i)
		fmt.Fprintf(out, "%2d  %s %s %s\n", i,
			ui.Swatch(c.Background, c.Background),
			ui.Swatch(c.Accent, "accent"),
			ui.Swatch(c.Text, "text"))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Title.Render("Fallback pool"))
	for i, c := range palette.Fallback() {
		fmt.Fprintf(out, "%2d  %s %s\n", i, ui.Swatch(c.Background, c.Background), ui.Swatch(c.Accent, c.Accent))
	}
	return nil
}
