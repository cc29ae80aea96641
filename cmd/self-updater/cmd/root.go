package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/self-updater/internal/config"
	domain "github.com/oshokin/self-updater/internal/domain/update"
	"github.com/oshokin/self-updater/internal/logger"
	"github.com/oshokin/self-updater/internal/service/download"
	"github.com/oshokin/self-updater/internal/service/updater"
	"github.com/oshokin/self-updater/internal/version"
)

// errUnknownLogLevel is returned for an unparsable --log-level value.
var errUnknownLogLevel = errors.New("unknown log level")

// flags holds raw command-line values; only flags the user actually set
// override the configuration file and environment.
type flags struct {
	configPath   string
	url          string
	out          string
	size         int
	restart      bool
	quiet        bool
	noColor      bool
	pause        bool
	redirectPath string
	noBackup     bool
	keepBackup   bool
	logLevel     string
}

var (
	// cliFlags receives the parsed flags.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	cliFlags flags

	// exitCode is set by run and returned to the shell by Execute.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	exitCode = domain.ExitSuccess

	// rootCmd downloads a file over an existing one with backup and rollback.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	rootCmd = newRootCommand(&cliFlags)
)

// newRootCommand builds the root command bound to f.
func newRootCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.Name + " --url <URL> --out <PATH> [flags]",
		Short: "Replace a file with a freshly downloaded copy, with backup and rollback.",
		Long: `Downloads a file over HTTP and writes it over the output path.

Only one instance runs at a time; a second invocation waits for the first to finish.
If the output file already exists it is renamed by appending '.backup' before
downloading. When the server answers with an error status or an empty body the
partial file is removed and the backup is put back.

Exit codes:
  0  success
  1  failure (invalid input, lock or file errors, rollback failure)
  2  download error (error status or empty body, rollback attempted)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := run(cmd, f)
			exitCode = code

			return err
		},
	}

	registerFlags(cmd.Flags(), f)
	version.AttachCobraVersionCommand(cmd)

	return cmd
}

// Execute runs the CLI and exits with the transaction's exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)

		os.Exit(domain.ExitFatal)
	}

	os.Exit(exitCode)
}

func registerFlags(fs *pflag.FlagSet, f *flags) {
	fs.StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	fs.StringVarP(&f.url, "url", "u", "", "target download URL")
	fs.StringVarP(&f.out, "out", "o", "", "output file location; an existing file is renamed to '<out>.backup' first")
	fs.IntVarP(&f.size, "size", "s", domain.DefaultBufferSize, "bytes of memory to reserve for streaming the file")
	fs.BoolVarP(&f.restart, "restart", "r", false, "start the new executable before exiting")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "suppress most output")
	fs.BoolVarP(&f.noColor, "no-color", "n", false, "disable ANSI colours in output")
	fs.BoolVarP(&f.pause, "pause", "p", false, "wait for Enter before exiting; ignored with --redirect")
	fs.StringVar(&f.redirectPath, "redirect", "", "write all output to the specified file")
	fs.BoolVar(&f.noBackup, "no-backup", false, "do not make a backup at all")
	fs.BoolVar(&f.keepBackup, "keep-backup", false, "keep the backup after a successful download")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// run wires configuration, output and the transaction together and returns the exit code.
func run(cmd *cobra.Command, f *flags) (int, error) {
	closeOutput, err := setupOutput(cmd.OutOrStdout(), f)
	if err != nil {
		return domain.ExitFatal, err
	}

	defer closeOutput()
	defer pauseBeforeExit(cmd, f)

	// Signals are not intercepted: interrupting the tool terminates it and the OS drops the lock.
	ctx := context.Background()

	cfg, err := config.Load(f.configPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return reportFatal(ctx, err), nil
	}

	applyFlags(cmd.Flags(), f, cfg)

	if cmd.Flags().NFlag() == 0 && cfg.URL == "" && cfg.OutputPath == "" {
		return domain.ExitSuccess, cmd.Help()
	}

	if err = config.Validate(cfg); err != nil {
		return reportFatal(ctx, err), nil
	}

	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	logger.SetLevel(effectiveLevel(level, f.quiet))

	result := updater.Run(ctx, cfg.Request(),
		updater.WithDownloader(download.New(download.WithConnectTimeout(cfg.ConnectTimeout))))

	return result.ExitCode(), nil
}

// setupOutput points the logger at stdout or the redirect file.
func setupOutput(stdout io.Writer, f *flags) (func(), error) {
	level, ok := logger.ParseLogLevel(f.logLevel)
	if !ok {
		return nil, fmt.Errorf("%q: %w", f.logLevel, errUnknownLogLevel)
	}

	out := logger.Output{
		Writer: stdout,
		Color:  !f.noColor,
		Level:  effectiveLevel(level, f.quiet),
	}

	if f.redirectPath == "" {
		logger.Setup(out)

		return logger.Sync, nil
	}

	file, err := os.Create(filepath.Clean(f.redirectPath))
	if err != nil {
		return nil, fmt.Errorf("open redirect file: %w", err)
	}

	// Escape sequences make no sense in a file.
	out.Writer = file
	out.Color = false

	logger.Setup(out)

	return func() {
		logger.Sync()

		_ = file.Close()
	}, nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(fs *pflag.FlagSet, f *flags, cfg *config.Config) {
	if fs.Changed("url") {
		cfg.URL = f.url
	}

	if fs.Changed("out") {
		cfg.OutputPath = f.out
	}

	if fs.Changed("size") {
		cfg.BufferSize = f.size
	}

	if fs.Changed("restart") {
		cfg.Restart = f.restart
	}

	if fs.Changed("no-backup") {
		cfg.NoBackup = f.noBackup
	}

	if fs.Changed("keep-backup") {
		cfg.KeepBackup = f.keepBackup
	}

	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

// effectiveLevel raises level to warn in quiet mode.
func effectiveLevel(level zapcore.Level, quiet bool) zapcore.Level {
	if quiet && level < zapcore.WarnLevel {
		return zapcore.WarnLevel
	}

	return level
}

// reportFatal prints a setup error as the run's summary line and returns exit code 1.
func reportFatal(ctx context.Context, err error) int {
	result := domain.NewFatal(fmt.Errorf("%w: %w", updater.ErrSetup, err))
	updater.Report(ctx, result)

	return result.ExitCode()
}

// pauseBeforeExit waits for Enter when --pause is set and output is not redirected.
func pauseBeforeExit(cmd *cobra.Command, f *flags) {
	if !f.pause || f.redirectPath != "" {
		return
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to exit...")
	_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
}
