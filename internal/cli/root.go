package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/pkg/config"
)

// App carries the state shared by every subcommand.
type App struct {
	Out    io.Writer
	Logger *zap.Logger

	configFile string
}

// NewRootCmd creates the top-level "timetable" command.
func NewRootCmd(app *App) *cobra.Command {
	if app.Logger == nil {
		app.Logger = zap.NewNop()
	}
	root := &cobra.Command{
		Use:           "timetable",
		Short:         "Offline timetable solver and affinity scorer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if app.Out == nil {
				app.Out = cmd.OutOrStdout()
			}
		},
	}
	root.PersistentFlags().StringVar(&app.configFile, "config", "", "Optional .env or YAML file with SCHEDULER_* and AFFINITY_* settings")

	root.AddCommand(
		newSolveCmd(app),
		newAffinityCmd(app),
	)
	return root
}

// loadConfig resolves settings from defaults, the environment and --config.
func (a *App) loadConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	v.AutomaticEnv()
	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", a.configFile, err)
			}
		}
	}
	return config.FromViper(v), nil
}
