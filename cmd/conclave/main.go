package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"conclave/internal/analysis"
	"conclave/internal/config"
	"conclave/internal/invoke"
	"conclave/internal/monitor"
	"conclave/internal/natsbus"
	"conclave/internal/registry"
	"conclave/internal/report"
	"conclave/internal/run"
	"conclave/internal/scheduler"
	"conclave/internal/store"
	"conclave/internal/vault"
	"conclave/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("conclave %s\n", version)
	case "gateway":
		err = runGateway()
	case "run":
		err = runOnce(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "secret":
		err = runSecret(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: conclave <command>

Commands:
  gateway    Start the Conclave gateway service
  run        Execute one analysis run and print the report
  export     Export stored run reports to a tar.zst archive
  import     Import run records from a tar.zst archive
  secret     Manage vault-sealed provider credentials
  version    Print version
`)
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting conclave gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	client, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("nats client: %w", err)
	}
	defer client.Close()

	// Preset registry: built-in presets plus any presets file
	reg := registry.New()
	if err := registry.RegisterDefaults(reg, cfg.Analysis); err != nil {
		return fmt.Errorf("register presets: %w", err)
	}
	if cfg.Analysis.PresetsPath != "" {
		if err := registry.LoadPresetsFile(reg, cfg.Analysis.PresetsPath, cfg.Analysis); err != nil {
			return fmt.Errorf("load presets file: %w", err)
		}
		slog.Info("presets loaded", "path", cfg.Analysis.PresetsPath)
	}

	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	} else {
		slog.Warn("vault passphrase not set, secrets API disabled")
	}

	providers, err := resolveProviders(cfg, db, v)
	if err != nil {
		return fmt.Errorf("resolve providers: %w", err)
	}

	mon := monitor.New(0, monitor.SlogSink{}, monitor.NewNATSSink(client))
	go mon.Start(ctx)

	invoker := invoke.NewNATSInvoker(client, providers)
	coord := run.New(invoker, mon, db)

	sched := scheduler.New(db, reg, coord, client, cfg.Scheduler)
	go sched.Start(ctx)

	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, reg, coord, cfg.Web, v, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			cfg = reloadConfig(cfg, sched, invoker, db, v)
			continue
		}
		slog.Info("shutting down", "signal", sig)
		break
	}
	cancel()
	return nil
}

// resolveProviders maps the configured providers to invocation settings,
// opening "secret:<name>" api_key references through the store and vault.
func resolveProviders(cfg *config.Config, db *store.Store, v *vault.Vault) (map[string]invoke.ProviderSettings, error) {
	return invoke.ResolveProviders(cfg.Providers, func(name string) (string, error) {
		if v == nil {
			return "", fmt.Errorf("vault passphrase not set")
		}
		sec, err := db.GetSecret(name)
		if err != nil {
			return "", err
		}
		if sec == nil {
			return "", fmt.Errorf("secret %q not found", name)
		}
		plain, err := v.Open(sec.Sealed)
		if err != nil {
			return "", fmt.Errorf("open secret %q: %w", name, err)
		}
		return string(plain), nil
	})
}

// reloadConfig re-reads the config on SIGHUP and applies what can change at
// runtime. Ports, store path and vault passphrase need a restart.
func reloadConfig(old *config.Config, sched *scheduler.Scheduler, invoker *invoke.NATSInvoker, db *store.Store, v *vault.Vault) *config.Config {
	next, err := config.Load()
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return old
	}

	d := config.Diff(old, next)
	for _, field := range d.NonReloadable {
		slog.Warn("config field needs a restart to apply", "field", field)
	}
	if !d.HasChanges() {
		slog.Info("config reloaded, nothing to apply")
		return next
	}

	if d.SchedulerChanged {
		sched.SetPollInterval(d.NewScheduler.PollInterval)
		slog.Info("scheduler poll interval updated", "poll_interval", d.NewScheduler.PollInterval)
	}
	if d.AnalysisChanged {
		slog.Info("analysis limits updated for future preset loads")
	}
	for _, p := range d.ProvidersAdded {
		slog.Info("provider added", "provider", p)
	}
	for _, p := range d.ProvidersRemoved {
		slog.Info("provider removed", "provider", p)
	}
	for _, p := range d.ProvidersChanged {
		slog.Info("provider updated", "provider", p)
	}
	if len(d.ProvidersAdded)+len(d.ProvidersRemoved)+len(d.ProvidersChanged) > 0 {
		providers, err := resolveProviders(next, db, v)
		if err != nil {
			slog.Error("provider resolution failed, keeping previous settings", "error", err)
		} else {
			invoker.SetProviders(providers)
		}
	}
	return next
}

// runOnce executes a single analysis against an already-running gateway's
// NATS bus and prints the markdown report.
func runOnce(args []string) error {
	var preset, mode, task, natsURL string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-preset":
			i++
			if i >= len(args) {
				return fmt.Errorf("missing value for -preset")
			}
			preset = args[i]
		case "-mode":
			i++
			if i >= len(args) {
				return fmt.Errorf("missing value for -mode")
			}
			mode = args[i]
		case "-task":
			i++
			if i >= len(args) {
				return fmt.Errorf("missing value for -task")
			}
			task = args[i]
		case "-nats":
			i++
			if i >= len(args) {
				return fmt.Errorf("missing value for -nats")
			}
			natsURL = args[i]
		}
	}
	if preset == "" {
		fmt.Fprintf(os.Stderr, "Usage: conclave run -preset <name> [-mode quick|standard|deep] [-task <text>] [-nats <url>]\n")
		return fmt.Errorf("missing -preset flag")
	}
	if mode == "" {
		mode = string(analysis.ModeStandard)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if natsURL == "" {
		natsURL = fmt.Sprintf("nats://127.0.0.1:%d", cfg.NATS.Port)
	}

	reg := registry.New()
	if err := registry.RegisterDefaults(reg, cfg.Analysis); err != nil {
		return fmt.Errorf("register presets: %w", err)
	}
	if cfg.Analysis.PresetsPath != "" {
		if err := registry.LoadPresetsFile(reg, cfg.Analysis.PresetsPath, cfg.Analysis); err != nil {
			return fmt.Errorf("load presets file: %w", err)
		}
	}
	runCfg, ok := reg.Get(preset)
	if !ok {
		return fmt.Errorf("unknown preset %q", preset)
	}

	var providers map[string]invoke.ProviderSettings
	if len(cfg.Providers) > 0 {
		db, err := store.New(cfg.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		var v *vault.Vault
		if cfg.Vault.Passphrase != "" {
			v = vault.New(cfg.Vault.Passphrase)
		}
		providers, err = resolveProviders(cfg, db, v)
		if err != nil {
			return fmt.Errorf("resolve providers: %w", err)
		}
	}

	client, err := natsbus.NewClientFromURL(natsURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer client.Close()

	coord := run.New(invoke.NewNATSInvoker(client, providers), nil, nil)
	result, err := coord.Execute(context.Background(), run.Request{
		RunID:     uuid.NewString(),
		Config:    runCfg,
		Mode:      analysis.Mode(mode),
		Task:      task,
		Principal: "cli",
	})
	if err != nil {
		return err
	}

	fmt.Print(report.Markdown(result))
	if result.Progress.Completed == 0 {
		return fmt.Errorf("no agent completed")
	}
	return nil
}
