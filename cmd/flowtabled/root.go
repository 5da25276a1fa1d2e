package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rlane/indigo/flowtable"
	"github.com/rlane/indigo/internal/config"
	"github.com/rlane/indigo/internal/logging"
	"github.com/rlane/indigo/internal/metrics"
	"github.com/rlane/indigo/ofp"
	"github.com/rlane/indigo/ofputil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile           string
	maxEntriesFlag     int
	loadFactorFlag     float64
	debugFlag          bool
	metricsListenFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "flowtabled",
	Short: "In-memory OpenFlow flow-table engine",
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "flowtabled", "config file name (searched in ., /etc/flowtabled)")
	flags.IntVar(&maxEntriesFlag, "max-entries", 0, "flow table capacity (0 uses config/default)")
	flags.Float64Var(&loadFactorFlag, "load-factor", 0, "secondary index load factor (0 uses config/default)")
	flags.BoolVar(&debugFlag, "debug", false, "enable development-mode logging")
	flags.StringVar(&metricsListenFlag, "metrics-listen-addr", "", "Prometheus metrics listen address (empty uses config/default)")

	rootCmd.AddCommand(serveCmd)
}

func loadEngineConfig() (config.EngineConfig, error) {
	// Flags are applied manually below rather than bound through
	// viper: cobra's hyphenated flag names ("max-entries") do not
	// match the underscored mapstructure keys ("max_entries") that
	// the environment-variable path uses, so BindPFlags here would
	// silently fail to override anything.
	cfg, err := config.Load(cfgFile, []string{".", "/etc/flowtabled"}, nil)
	if err != nil {
		return config.EngineConfig{}, err
	}
	if maxEntriesFlag > 0 {
		cfg.MaxEntries = maxEntriesFlag
	}
	if loadFactorFlag > 0 {
		cfg.LoadFactor = loadFactorFlag
	}
	if metricsListenFlag != "" {
		cfg.MetricsListenAddr = metricsListenFlag
	}
	if debugFlag {
		cfg.Debug = true
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flow-table engine with a metrics endpoint and an interactive console",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	fm := metrics.NewFlowTableMetrics(reg)

	engine := flowtable.Create(flowtable.Config{
		MaxEntries: cfg.MaxEntries,
		LoadFactor: cfg.LoadFactor,
		Logger:     logger,
		Metrics:    fm,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("flowtabled ready",
		zap.Int("max_entries", cfg.MaxEntries),
		zap.Float64("load_factor", cfg.LoadFactor),
		zap.String("metrics_listen_addr", cfg.MetricsListenAddr),
	)

	runConsole(engine)
	return nil
}

func runConsole(engine *flowtable.Engine) {
	fmt.Println("flowtabled console: add <id> <inport> <priority> <outport> | delete <id> | query | status |" +
		" wireadd <id> <path> | wiredelete <path> | wirestats <reqpath> <outpath> | wireremoved <id> <outpath> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "add":
			handleAdd(engine, fields[1:])
		case "delete":
			handleDelete(engine, fields[1:])
		case "query":
			handleQuery(engine)
		case "status":
			printStatus(engine)
		case "wireadd":
			handleWireAdd(engine, fields[1:])
		case "wiredelete":
			handleWireDelete(engine, fields[1:])
		case "wirestats":
			handleWireStats(engine, fields[1:])
		case "wireremoved":
			handleWireRemoved(engine, fields[1:])
		case "quit", "exit":
			return
		default:
			fmt.Println("unrecognized command:", fields[0])
		}
	}
}

func handleAdd(engine *flowtable.Engine, args []string) {
	if len(args) != 4 {
		fmt.Println("usage: add <id> <inport> <priority> <outport>")
		return
	}
	id, err1 := strconv.ParseUint(args[0], 10, 64)
	inPort, err2 := strconv.ParseUint(args[1], 10, 32)
	priority, err3 := strconv.ParseUint(args[2], 10, 16)
	outPort, err4 := strconv.ParseUint(args[3], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		fmt.Println("all arguments must be integers")
		return
	}

	msg := &flowtable.AddMessage{
		Match:    ofputil.ExtendedMatch(ofputil.MatchInPort(ofp.PortNo(inPort))),
		Priority: uint16(priority),
		Actions:  ofp.Actions{&ofp.ActionOutput{Port: ofp.PortNo(outPort)}},
	}

	if _, err := engine.Add(id, msg, time.Now()); err != nil {
		fmt.Println("add failed:", err)
		return
	}
	fmt.Println("ok")
}

func handleDelete(engine *flowtable.Engine, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: delete <id>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Println("id must be an integer")
		return
	}
	if err := engine.DeleteID(id); err != nil {
		fmt.Println("delete failed:", err)
		return
	}
	fmt.Println("ok")
}

func handleQuery(engine *flowtable.Engine) {
	q := &flowtable.Query{Mode: flowtable.ModeCookieOnly, Table: ofp.TableAll}
	for _, entry := range engine.Query(q) {
		packets, bytes := entry.Counters()
		fmt.Printf("id=%d priority=%d state=%s packets=%d bytes=%d outputs=%v\n",
			entry.ID(), entry.Priority(), entry.State(), packets, bytes, entry.OutputPorts())
	}
}

// handleWireAdd reads a wire-encoded ofp.FlowMod (OFPFC_ADD) from path
// and adds it to the engine under id, exercising FlowMod.ReadFrom and
// flowtable.AddMessageFromFlowMod.
func handleWireAdd(engine *flowtable.Engine, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: wireadd <id> <path>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Println("id must be an integer")
		return
	}

	f, err := os.Open(args[1])
	if err != nil {
		fmt.Println("open failed:", err)
		return
	}
	defer f.Close()

	var fm ofp.FlowMod
	if _, err := fm.ReadFrom(f); err != nil {
		fmt.Println("decode flow mod failed:", err)
		return
	}

	msg := flowtable.AddMessageFromFlowMod(&fm)
	if _, err := engine.Add(id, msg, time.Now()); err != nil {
		fmt.Println("add failed:", err)
		return
	}
	fmt.Println("ok")
}

// handleWireDelete reads a wire-encoded ofp.FlowMod carrying a delete
// command from path and deletes every entry the resulting query
// matches, exercising FlowMod.ReadFrom and flowtable.QueryFromFlowMod.
func handleWireDelete(engine *flowtable.Engine, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: wiredelete <path>")
		return
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Println("open failed:", err)
		return
	}
	defer f.Close()

	var fm ofp.FlowMod
	if _, err := fm.ReadFrom(f); err != nil {
		fmt.Println("decode flow mod failed:", err)
		return
	}

	q := flowtable.QueryFromFlowMod(&fm)
	matches := engine.Query(q)
	for _, entry := range matches {
		if err := engine.Delete(entry); err != nil {
			fmt.Println("delete failed:", err)
		}
	}
	fmt.Printf("deleted %d entries\n", len(matches))
}

// handleWireStats reads a wire-encoded ofp.FlowStatsRequest from
// reqpath, queries the engine for matching entries, and appends each
// as a wire-encoded ofp.FlowStats to outpath, exercising
// FlowStatsRequest.ReadFrom, flowtable.QueryFromFlowStatsRequest and
// FlowStats.WriteTo.
func handleWireStats(engine *flowtable.Engine, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: wirestats <reqpath> <outpath>")
		return
	}

	reqFile, err := os.Open(args[0])
	if err != nil {
		fmt.Println("open failed:", err)
		return
	}
	defer reqFile.Close()

	var req ofp.FlowStatsRequest
	if _, err := req.ReadFrom(reqFile); err != nil {
		fmt.Println("decode flow stats request failed:", err)
		return
	}

	out, err := os.Create(args[1])
	if err != nil {
		fmt.Println("create failed:", err)
		return
	}
	defer out.Close()

	q := flowtable.QueryFromFlowStatsRequest(&req)
	now := time.Now()
	for _, entry := range engine.Query(q) {
		stats := flowtable.FlowStatsFromEntry(entry, now)
		if _, err := stats.WriteTo(out); err != nil {
			fmt.Println("encode flow stats failed:", err)
			return
		}
	}
	fmt.Println("ok")
}

// handleWireRemoved looks up id and writes a wire-encoded
// ofp.FlowRemoved for its current state to outpath, exercising
// flowtable.FlowRemovedFromEntry and FlowRemoved.WriteTo.
func handleWireRemoved(engine *flowtable.Engine, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: wireremoved <id> <outpath>")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Println("id must be an integer")
		return
	}

	entry, ok := engine.Lookup(id)
	if !ok {
		fmt.Println("no such entry")
		return
	}

	out, err := os.Create(args[1])
	if err != nil {
		fmt.Println("create failed:", err)
		return
	}
	defer out.Close()

	removed := flowtable.FlowRemovedFromEntry(entry, time.Now())
	if _, err := removed.WriteTo(out); err != nil {
		fmt.Println("encode flow removed failed:", err)
		return
	}
	fmt.Println("ok")
}

func printStatus(engine *flowtable.Engine) {
	s := engine.Status()
	fmt.Printf("current_count=%d pending_deletes=%d adds=%d deletes=%d "+
		"hard_expires=%d idle_expires=%d updates=%d table_full_errors=%d forwarding_add_errors=%d\n",
		s.CurrentCount, s.PendingDeletes, s.Adds, s.Deletes,
		s.HardExpires, s.IdleExpires, s.Updates, s.TableFullErrors, s.ForwardingAddErrors)
}
