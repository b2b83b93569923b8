package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GriffinCanCode/toolfetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	headers     []string
	method      string
	timeout     time.Duration
	userAgent   string
	metricsFile string
	verbose     bool
	noColor     bool
	progress    bool
}

// session is the state shared by one command invocation.
type session struct {
	version string
	flags   rootFlags
	app     *App
	stdout  io.Writer
	stderr  io.Writer
}

// Execute runs the CLI and returns the process exit code. Cancelling ctx
// aborts the fetch in flight.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	cmd, s := newRootCommand(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if s.app != nil {
		if cerr := s.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil && !errors.Is(err, ErrFetchFailed) {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(stderr, "%s %v\n", red("error:"), err)
	}
	return exitCode(err)
}

// NewRootCommand returns the toolfetch command tree.
func NewRootCommand(version string) *cobra.Command {
	cmd, _ := newRootCommand(version)
	return cmd
}

func newRootCommand(version string) (*cobra.Command, *session) {
	s := &session{version: version}

	root := &cobra.Command{
		Use:   "toolfetch",
		Short: "Fetch JSON, text and binaries over HTTP",
		Long: `toolfetch fetches release indexes, checksum files and tool archives.

JSON and text fetches report redirects instead of following them; binary
fetches follow up to 5 redirects. Interrupting the process aborts the
request in flight.

Configuration is read from the environment (FETCH_*, LOG_*, METRICS_*);
flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return s.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&s.flags.headers, "header", "H", nil, `Request header, "Name: value" (repeatable)`)
	pf.StringVarP(&s.flags.method, "method", "X", "", "Request method (default GET, or POST with --data)")
	pf.DurationVar(&s.flags.timeout, "timeout", 0, "Per-request timeout (env: FETCH_TIMEOUT)")
	pf.StringVar(&s.flags.userAgent, "user-agent", "", "User-Agent when no header sets one (env: FETCH_USER_AGENT)")
	pf.StringVar(&s.flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit (env: METRICS_FILE)")
	pf.BoolVarP(&s.flags.verbose, "verbose", "v", false, "Debug logging to stderr")
	pf.BoolVar(&s.flags.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&s.flags.progress, "progress", isatty.IsTerminal(os.Stderr.Fd()), "Show transfer progress on stderr")

	root.AddCommand(
		newJSONCommand(s),
		newTextCommand(s),
		newBinaryCommand(s),
		newRunCommand(s),
		newVersionCommand(s),
	)
	return root, s
}

func (s *session) setup(cmd *cobra.Command) error {
	s.stdout = cmd.OutOrStdout()
	s.stderr = cmd.ErrOrStderr()
	if s.flags.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load()
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Fetch.Timeout = s.flags.timeout
	}
	if flags.Changed("user-agent") {
		cfg.Fetch.UserAgent = s.flags.userAgent
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.File = s.flags.metricsFile
	}
	if s.flags.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	app, err := NewApp(cfg)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	s.app = app
	return nil
}

// header parses the --header flags.
func (s *session) header() (http.Header, error) {
	return parseHeaders(s.flags.headers)
}

func parseHeaders(lines []string) (http.Header, error) {
	h := http.Header{}
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", line)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

func newVersionCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toolfetch version %s\n", s.version)
			fmt.Fprintf(cmd.OutOrStdout(), "User-Agent: %s\n", netrequest.DefaultUserAgent)
		},
	}
}
