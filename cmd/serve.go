package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"AttendanceBot/bot"
	"AttendanceBot/handlers"
	"AttendanceBot/intake"
	"AttendanceBot/jobs"
	"AttendanceBot/messaging"
	"AttendanceBot/middleware"
	"AttendanceBot/scheduler"
	"AttendanceBot/vision"
)

const shutdownTimeout = 15 * time.Second

var serveNoAPI bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the job scheduler and the supervisor API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-api", false, "Do not start the supervisor HTTP API")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log

	if err := cfg.RequireBot(); err != nil {
		return err
	}
	if !serveNoAPI {
		if err := cfg.RequireAPI(); err != nil {
			return err
		}
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	tg := messaging.NewTelegram(api, log)

	dest := messaging.NewDestination(a.store, log)
	if err := dest.Load(ctx); err != nil {
		log.Warn("restore destination", zap.Error(err))
	}

	content, err := loadContent(cfg)
	if err != nil {
		return err
	}
	runner := jobs.NewRunner(jobs.Deps{
		Messenger:   tg,
		Destination: dest,
		Reports:     a.reports,
		Counter:     a.ledger,
		Content:     content,
		Logger:      log,
	})

	sched, err := newScheduler(a, runner)
	if err != nil {
		return err
	}

	var counter vision.PersonCounter = vision.Disabled{}
	if cfg.VisionURL != "" {
		counter = vision.NewHTTPCounter(cfg.VisionURL, cfg.VisionTimeout)
	} else {
		log.Warn("VISION_URL not set; photos are credited without a person count")
	}
	b := bot.New(bot.Deps{
		Intake: intake.NewCoordinator(a.ledger, counter, intake.Config{
			MinPersons:    cfg.MinPersonCount,
			VisionTimeout: cfg.VisionTimeout,
		}, log),
		Jobs:          runner,
		Messenger:     tg,
		Files:         tg,
		Destination:   dest,
		Logger:        log,
		MaxConcurrent: cfg.MaxConcurrentUpdates,
	})

	// Stop order: updates and bot handlers, then the scheduler (which waits
	// for running actions), then the API.
	g, gctx := errgroup.WithContext(ctx)
	detached := context.WithoutCancel(ctx)
	schedCtx, stopSched := context.WithCancel(detached)
	defer stopSched()
	apiCtx, stopAPI := context.WithCancel(detached)
	defer stopAPI()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	botDone := make(chan struct{})
	g.Go(func() error {
		defer close(botDone)
		return b.Run(gctx, updates)
	})
	g.Go(func() error {
		<-gctx.Done()
		api.StopReceivingUpdates()
		return nil
	})

	schedDone := make(chan struct{})
	g.Go(func() error {
		defer close(schedDone)
		return sched.Run(schedCtx)
	})

	if !serveNoAPI {
		if err := serveAPI(apiCtx, g, a, runner, dest); err != nil {
			stop()
			stopInOrder(log, botDone, stage{name: "scheduler", cancel: stopSched, done: schedDone})
			return err
		}
	}
	g.Go(func() error {
		stopInOrder(log, botDone,
			stage{name: "scheduler", cancel: stopSched, done: schedDone},
			stage{name: "api", cancel: stopAPI},
		)
		return nil
	})

	log.Info("serving", zap.Bool("api", !serveNoAPI))
	err = g.Wait()
	log.Info("shut down", zap.Error(err))
	return err
}

type stage struct {
	name   string
	cancel context.CancelFunc
	// done closes once the stage has stopped. Nil means cancel is enough.
	done <-chan struct{}
}

// stopInOrder waits for first, then cancels each stage and waits for it
// before moving to the next.
func stopInOrder(log *zap.Logger, first <-chan struct{}, stages ...stage) {
	<-first
	for _, st := range stages {
		log.Info("stopping", zap.String("component", st.name))
		st.cancel()
		if st.done != nil {
			<-st.done
		}
	}
}

func newScheduler(a *app, runner *jobs.Runner) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(a.cal, nil, a.cfg.TickInterval, a.log)
	if err != nil {
		return nil, err
	}
	for _, rule := range a.schedule.Rules {
		action, err := runner.Scheduled(rule.Action)
		if err != nil {
			return nil, fmt.Errorf("schedule rule %s: %w", rule.Name, err)
		}
		if err := sched.Register(rule, action); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func serveAPI(ctx context.Context, g *errgroup.Group, a *app, runner *jobs.Runner, dest *messaging.Destination) error {
	auth, err := middleware.NewJWTAuth(a.cfg.JWTSecret)
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(a.cfg.RateLimitPerMinute)
	handler := handlers.New(handlers.Deps{
		Attendance:        a.ledger,
		Reports:           a.reports,
		Jobs:              runner,
		Destination:       dest,
		Calendar:          a.cal,
		Auth:              auth,
		Limiter:           limiter,
		AdminUsername:     a.cfg.AdminUsername,
		AdminPasswordHash: a.cfg.AdminPasswordHash,
		AllowedOrigins:    a.cfg.AllowedOrigins,
		Logger:            a.log,
	}).Handler()

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		limiter.RunCleanup(ctx)
		return nil
	})
	g.Go(func() error {
		a.log.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}
