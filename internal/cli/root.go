// Package cli implements the blade command: render pages and components from
// a views directory, or serve them over HTTP.
//
// Settings are read, highest priority first, from flags, BLADE_* environment
// variables and a .blade.yml file in the working directory.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	blade "github.com/dangdungcntt/go-blade-slots"
)

// NewRootCommand returns the blade command with its subcommands.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "blade",
		Short:        "Render blade templates and components",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .blade.yml)")
	flags.String("views", "views", "directory holding the templates")
	flags.String("context-behavior", "", "context given to fills: inherited or isolated")
	flags.String("output-policy", "", "how slot functions output is made safe: escape or sanitize")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	bindFlags(v, flags, "views", "context-behavior", "output-policy", "log-level")

	cmd.AddCommand(newRenderCommand(v), newServeCommand(v))
	return cmd
}

// bindFlags makes the named flags the highest priority source of their viper keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".blade")
	}
	// BLADE_VIEWS, BLADE_CONTEXT_BEHAVIOR, ...
	v.SetEnvPrefix("BLADE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// newEngine builds an engine from the environment config overridden by the
// command settings, and loads the views.
func newEngine(v *viper.Viper, logger *slog.Logger) (*blade.Engine, error) {
	cfg, err := blade.LoadConfig()
	if err != nil {
		return nil, err
	}
	if b := v.GetString("context-behavior"); b != "" {
		if err := cfg.ContextBehavior.UnmarshalText([]byte(b)); err != nil {
			return nil, err
		}
	}
	if p := v.GetString("output-policy"); p != "" {
		if err := cfg.OutputPolicy.UnmarshalText([]byte(p)); err != nil {
			return nil, err
		}
	}

	eng := blade.NewEngine(v.GetString("views"))
	eng.Config = cfg
	eng.Logger = logger
	if err := eng.Load(); err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}
	return eng, nil
}
