package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"strava-leaderboard/internal/auth"
	"strava-leaderboard/internal/config"
	"strava-leaderboard/internal/observability"
	"strava-leaderboard/internal/queue"
	"strava-leaderboard/internal/server"
	"strava-leaderboard/internal/service"
	"strava-leaderboard/internal/store"
	"strava-leaderboard/internal/strava"
	"strava-leaderboard/internal/tui"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file (default ~/.strava-leaderboard/config.json)")
	once := flag.Bool("once", false, "run a single cycle, print it and exit")
	watch := flag.Bool("watch", false, "show a live leaderboard instead of printing each cycle")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(*configPath); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		fmt.Printf("\nPlease edit the config file at:\n  %s\n\n", displayPath(*configPath))
		fmt.Println("You need to add your Strava API credentials.")
		fmt.Println("Get them from: https://www.strava.com/settings/api")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w (edit %s)", err, displayPath(*configPath))
	}

	logOut, closeLog, err := logOutput(*watch)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := observability.NewLoggerTo(logOut, cfg.Observability.LogFormat)

	if err := observability.InitSentry(cfg.Observability.SentryDSN, cfg.Observability.Environment); err != nil {
		return fmt.Errorf("initializing sentry: %w", err)
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential store and registry
	credStore, err := store.Open(ctx, store.Options{
		Backend:       cfg.Storage.Backend,
		Path:          cfg.Storage.Path,
		DSN:           cfg.Storage.DSN,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		RedisKey:      cfg.Storage.RedisKey,
		EncryptionKey: cfg.Storage.EncryptionKey,
	})
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer credStore.Close()

	registry, err := store.OpenRegistry(ctx, credStore)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if registry.Len() == 0 {
		logger.Warn("no_athletes", map[string]any{
			"hint": "open " + authorizeURL(cfg.Auth.RedirectURL) + " to register an athlete",
		})
	}

	// Authorization
	provider := auth.NewProvider(auth.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  cfg.Auth.RedirectURL,
	}, &http.Client{Timeout: 30 * time.Second})

	stateSecret := cfg.Auth.StateSecret
	if stateSecret == "" {
		stateSecret = cfg.Strava.ClientSecret
	}
	intake := auth.NewIntake(provider, auth.NewStateSigner(stateSecret, cfg.Auth.Timeout()), registry, cfg.Auth.Timeout(), logger)
	manager := auth.NewManager(provider, intake, registry, cfg.Auth.Leeway(), logger)

	// Leaderboard
	since, _ := cfg.Leaderboard.SinceDate()
	policy, _ := service.ParseFailurePolicy(cfg.Leaderboard.FailurePolicy)
	client := strava.NewClient(cfg.Strava.BaseURL, nil)
	scheduler := service.NewScheduler(registry, manager, client, service.Options{
		Since:             since,
		Interval:          cfg.Leaderboard.Interval(),
		Policy:            policy,
		Concurrency:       cfg.Leaderboard.Concurrency,
		DetailConcurrency: cfg.Leaderboard.DetailConcurrency,
	}, logger)

	if cfg.Publish.Enabled {
		scheduler.AddSink(queue.NewPublisher(cfg.Publish.RabbitMQURL, cfg.Publish.Queue))
	}

	// Callback server
	srv := server.New(intake, scheduler, logger)
	go func() {
		if err := srv.Run(ctx, cfg.Auth.ListenAddr); err != nil {
			logger.Error("server_failed", map[string]any{"addr": cfg.Auth.ListenAddr, "error": err})
		}
	}()

	if !*watch {
		intake.OnPrompt(printPrompt)
	}

	switch {
	case *once:
		scheduler.AddSink(tui.NewConsole(os.Stdout))
		if _, err := scheduler.RunCycle(ctx); err != nil {
			return stopped(err)
		}
		return nil

	case *watch:
		return runWatch(ctx, scheduler, intake)

	default:
		scheduler.AddSink(tui.NewConsole(os.Stdout))
		return stopped(scheduler.Run(ctx))
	}
}

// runWatch runs the scheduler behind the live leaderboard until the user
// quits or the process is interrupted.
func runWatch(ctx context.Context, scheduler *service.Scheduler, intake *auth.Intake) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tui.NewApp(scheduler, scheduler.Latest())
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	feed := tui.NewFeed(p)
	progress := make(chan service.Progress, 16)
	scheduler.SetProgress(progress)
	scheduler.AddSink(feed)
	intake.OnPrompt(feed.Prompt)
	go feed.Pump(ctx, progress)

	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	_, err := p.Run()
	cancel()
	<-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}
	fmt.Println("Stopped by user.")
	return nil
}

func printPrompt(p auth.Prompt) {
	if p.Closed {
		return
	}
	fmt.Printf("\nAuthorization required. Open this URL in your browser:\n  %s\n\n", p.URL)
}

// stopped turns an interrupt into a clean exit
func stopped(err error) error {
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nStopped by user.")
		return nil
	}
	return err
}

// logOutput sends logs to stdout, or to a file while the watch screen owns the terminal
func logOutput(watch bool) (io.Writer, func(), error) {
	if !watch {
		return os.Stdout, func() {}, nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "leaderboard.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func authorizeURL(redirectURL string) string {
	if u, err := url.Parse(redirectURL); err == nil {
		u.Path = "/authorize"
		u.RawQuery = ""
		return u.String()
	}
	return redirectURL
}

func displayPath(path string) string {
	if path != "" {
		return path
	}
	dir, _ := config.GetConfigDir()
	return filepath.Join(dir, "config.json")
}
