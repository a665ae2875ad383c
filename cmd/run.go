package cmd

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"AttendanceBot/config"
	"AttendanceBot/jobs"
	"AttendanceBot/messaging"
)

var runChat int64

var runCmd = &cobra.Command{
	Use:   "run <action>",
	Short: "Run one scheduled action now",
	Long: `Run one action from the job table immediately. The post goes to --chat,
or to the remembered group chat when --chat is not given.

Actions: ` + strings.Join(jobs.ActionNames(), ", "),
	Args: cobra.ExactArgs(1),
	RunE: runAction,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the Postgres schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	runCmd.Flags().Int64Var(&runChat, "chat", 0, "Target chat id")
}

func runAction(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.cfg.RequireBot(); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(a.cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	dest := messaging.NewDestination(a.store, a.log)
	if err := dest.Load(cmd.Context()); err != nil {
		a.log.Warn("restore destination", zap.Error(err))
	}
	chat := runChat
	if chat == 0 {
		var ok bool
		if chat, ok = dest.Get(); !ok {
			return errors.New("run: no --chat given and no group chat remembered yet")
		}
	}

	content, err := loadContent(a.cfg)
	if err != nil {
		return err
	}
	tg := messaging.NewTelegram(api, a.log)
	runner := jobs.NewRunner(jobs.Deps{
		Messenger:   tg,
		Destination: dest,
		Reports:     a.reports,
		Counter:     a.ledger,
		Content:     content,
		Logger:      a.log,
	})
	if err := runner.RunTo(cmd.Context(), args[0], chat); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %d\n", args[0], chat)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOnly()
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrate: STORE is %q, nothing to migrate", cfg.Store)
	}
	// Opening the app connects and applies migrations.
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
	return nil
}

func loadConfigOnly() (*config.Config, error) {
	return config.Load(envFile)
}
