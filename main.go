// dddw images a raw disk or volume into a file.
//
// Build:
//
//	go build -o dddw .
package main

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dddw/blockdev"
	"dddw/config"
	"dddw/elevation"
	"dddw/retrodfrg"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

// app carries what the commands need from the outside world so tests can
// swap it.
type app struct {
	stdout io.Writer
	stderr io.Writer
	// stderrTTY selects the progress bar over log lines.
	stderrTTY bool

	isElevated elevation.Checker
	enumerator func(zerolog.Logger) *blockdev.Enumerator
	opener     func(zerolog.Logger) *blockdev.Opener
	newUI      func() (*retrodfrg.UI, error)
	exit       func(int)

	cfg config.Config
	log zerolog.Logger
}

func newApp(stdout, stderr *os.File) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		stderrTTY:  term.IsTerminal(int(stderr.Fd())),
		isElevated: elevation.IsElevated,
		enumerator: blockdev.NewEnumerator,
		opener:     blockdev.NewOpener,
		newUI:      retrodfrg.NewUI,
		exit:       os.Exit,
	}
}

func (a *app) setLogger(level zerolog.Level, fullTimestamps bool) {
	format := time.RFC3339
	if fullTimestamps {
		format = time.RFC3339Nano
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{
		Out:        a.stderr,
		TimeFormat: format,
		NoColor:    !a.stderrTTY,
	}).Level(level).With().Timestamp().Logger()
}

// loadConfig resolves settings: defaults, then the config file, then the
// environment. Flags are applied by the commands.
func (a *app) loadConfig(cmd *cobra.Command, path, level string) error {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path, cfg); err != nil {
			return err
		}
	}
	cfg = config.FromEnv(cfg)
	if cmd.Flags().Changed("log-level") {
		l, full, err := config.ParseLevel(level)
		if err != nil {
			return errors.Wrap(err, "--log-level")
		}
		cfg.LogLevel, cfg.FullTimestamps = l, full
	}
	a.cfg = cfg
	a.setLogger(cfg.LogLevel, cfg.FullTimestamps)
	return nil
}

func (a *app) rootCmd() *cobra.Command {
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "dddw",
		Short:         "Raw disk and volume imaging utility",
		Long:          "List block devices and dump a disk or volume byte for byte into an image file",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd, configPath, logLevel)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "info", "log level (error, warn, info, fullinfo, debug, fulldebug, trace)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")

	root.AddCommand(a.listDevicesCmd())
	root.AddCommand(a.dumpCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("dddw %s\n", version)
		},
	})
	return root
}

// run executes the command line and returns the process exit code. Errors
// are logged here and nowhere else.
func (a *app) run(args []string) int {
	a.setLogger(zerolog.InfoLevel, false)
	root := a.rootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		a.log.Error().Err(err).Msg("dddw failed")
		return 1
	}
	return 0
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	os.Exit(a.run(os.Args[1:]))
}
