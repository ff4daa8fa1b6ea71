package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/rmsnarf/internal/chat"
	"github.com/danielolaszy/rmsnarf/internal/config"
	"github.com/danielolaszy/rmsnarf/internal/logging"
	"github.com/danielolaszy/rmsnarf/internal/snarf"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// watchCmd runs the snarfer against chat events read from stdin.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Answer issue references in chat events read from stdin",
	Long: `Read chat events from stdin, one per line, and write replies to stdout
as "<target> <text>" lines. Events are either raw IRC PRIVMSG lines or
"<channel> <text>":

  :alice!alice@example.com PRIVMSG #pulp :RM 1234 is fixed
  #pulp is RM 1234 still open?

Channel messages starting with the command prefix (default "@") and private
messages are commands; "bug <number>" is the only one. When --config is given
the file is watched and changes apply without a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cfgFile)
		if err != nil {
			return err
		}
		cfg, err := config.FromViper(v)
		if err != nil {
			return err
		}

		svc, err := newService(cfg)
		if err != nil {
			return err
		}

		if cfgFile != "" {
			watchConfig(v, svc)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		replier := chat.NewPacedReplier(chat.NewWriterReplier(cmd.OutOrStdout()), cfg.Chat.LinesPerSecond, cfg.Chat.Burst)
		dispatcher := chat.NewDispatcher(svc, replier, cfg.Snarfer.CommandPrefix, cfg.Chat.Workers)

		logging.Info("watching for issue references",
			"tracker", cfg.Redmine.URL,
			"default_enabled", cfg.Snarfer.Enabled,
			"workers", cfg.Chat.Workers)

		// The reader is not waited for: a blocked stdin read cannot be
		// interrupted, and the process exits once the dispatcher returns.
		events := make(chan chat.Event)
		go func() {
			defer close(events)
			if err := chat.ReadEvents(ctx, cmd.InOrStdin(), events); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("stopped reading events", "error", err)
			}
		}()

		return dispatcher.Run(ctx, events)
	},
}

// watchConfig reloads the snarfer settings whenever the config file changes.
// An invalid file is logged and the previous settings stay in effect.
func watchConfig(v *viper.Viper, svc *snarf.Service) {
	v.OnConfigChange(func(e fsnotify.Event) {
		logging.Info("config file changed", "path", e.Name, "op", e.Op.String())

		cfg, err := config.FromViper(v)
		if err != nil {
			logging.Warn("ignoring invalid configuration", "error", err)
			return
		}
		settings, err := newSettings(cfg)
		if err != nil {
			logging.Warn("ignoring configuration", "error", err)
			return
		}
		svc.Reconfigure(settings)
	})
	v.WatchConfig()
}
