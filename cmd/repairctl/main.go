// Command repairctl works with the repair ticket store from a terminal,
// going through the same workspace the desk API uses.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lorrc/repair-desk/internal/adapters/secondary/memory"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/sheets"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/xlsx"
	"github.com/lorrc/repair-desk/internal/config"
	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/services"
	"github.com/lorrc/repair-desk/internal/infrastructure/logging"
)

var (
	statusFlag string
	outputFlag string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "repairctl",
	Short:        "Inspect and update repair tickets",
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets, optionally only those with one status",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var advanceCmd = &cobra.Command{
	Use:   "advance ID STATUS",
	Short: "Move a ticket to its next status (IN_PROGRESS or DONE)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdvance,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write completed tickets to an .xlsx workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	listCmd.Flags().StringVar(&statusFlag, "status", "", "only show tickets with this status (PENDING, IN_PROGRESS, DONE)")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output file (default: dated file name in the current directory)")

	rootCmd.AddCommand(listCmd, advanceCmd, exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// session is a single workspace loaded straight from the remote store.
type session struct {
	ws        *services.Workspace
	exporter  *xlsx.Exporter
	publisher *alertPrinter
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = "text"
	logCfg.Output = io.Discard
	if verbose {
		logCfg.Output = os.Stderr
	}
	logCfg.ServiceName = "repairctl"
	logCfg.Environment = cfg.App.Environment
	logger := logging.NewLogger(logCfg)

	exporter := xlsx.NewExporter()
	publisher := &alertPrinter{out: os.Stderr}
	ws := services.NewWorkspace(uuid.New(), services.WorkspaceDeps{
		Remote: sheets.NewClient(sheets.Config{
			EndpointURL: cfg.Remote.URL,
			Timeout:     cfg.Remote.Timeout,
		}, logger),
		KV:        memory.NewStore(),
		Publisher: publisher,
		Exporter:  exporter,
		Logger:    logger,
	}, services.WorkspaceConfig{
		CacheKey:          cfg.Cache.Key,
		FilterKey:         cfg.Cache.FilterKey,
		CacheDuration:     cfg.Cache.Duration,
		FilterSwitchDelay: cfg.Desk.FilterSwitchDelay,
		SlowLoadAfter:     cfg.Desk.SlowLoadAfter,
		TechnicianName:    cfg.Desk.TechnicianName,
		Policies:          services.DefaultMutationPolicies(),
		Location:          cfg.Desk.Location(),
	})

	if err := ws.Load(ctx, true); err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	return &session{ws: ws, exporter: exporter, publisher: publisher}, nil
}

func runList(cmd *cobra.Command, _ []string) error {
	statuses := domain.Statuses
	if statusFlag != "" {
		status, err := domain.ParseStatus(statusFlag)
		if err != nil {
			return fmt.Errorf("--status %q: %w", statusFlag, err)
		}
		statuses = []domain.TicketStatus{status}
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.ws.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tREPORTER\tDEPARTMENT\tPROBLEM\tRATING")
	for _, status := range statuses {
		if err := s.ws.SetFilter(cmd.Context(), status); err != nil {
			return err
		}
		for _, t := range s.ws.State().Tickets {
			rating := "-"
			if t.IsRated() {
				rating = strconv.Itoa(t.Rating.Score)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Status, t.CreatedAt, t.TeacherName, t.Department, t.ProblemType, rating)
		}
	}
	return tw.Flush()
}

func runAdvance(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ticket id %q", args[0])
	}
	target, err := domain.ParseStatus(args[1])
	if err != nil {
		return fmt.Errorf("status %q: %w", args[1], err)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}

	if _, err := s.ws.AdvanceStatus(cmd.Context(), id, target); err != nil {
		return err
	}
	// The write happens in the background; wait for its outcome.
	s.ws.Wait()

	if s.publisher.Failed() {
		return fmt.Errorf("ticket %d was not updated", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ticket %d is now %s\n", id, target)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.ws.Close()

	path := outputFlag
	if path == "" {
		path = s.exporter.FileName(time.Now())
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.ws.ExportCompleted(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// alertPrinter prints alerts as they are published and remembers whether
// any of them reported a failure. State events are ignored.
type alertPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	failed bool
}

func (p *alertPrinter) Publish(_ uuid.UUID, event domain.Event) {
	alert, ok := event.Payload.(domain.Alert)
	if event.Type != domain.EventAlert || !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if alert.Level == domain.AlertError {
		p.failed = true
	}
	fmt.Fprintf(p.out, "[%s] %s\n", alert.Level, alert.Message)
}

func (p *alertPrinter) Failed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
