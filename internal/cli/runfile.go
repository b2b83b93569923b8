package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RunFile is a YAML list of fetches executed in order:
//
//	defaults:
//	  timeout: 30s
//	  headers:
//	    Accept: application/json
//	requests:
//	  - name: node-index
//	    kind: json
//	    url: https://nodejs.org/dist/index.json
//	    query: 0.version
//	  - name: node-archive
//	    kind: binary
//	    url: https://nodejs.org/dist/v20.11.1/node-v20.11.1-linux-x64.tar.xz
//	    output: node.tar.xz
type RunFile struct {
	Defaults RequestDefaults `yaml:"defaults"`
	Requests []RequestEntry  `yaml:"requests"`
}

// RequestDefaults apply to every entry that does not override them.
type RequestDefaults struct {
	Timeout string            `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// RequestEntry is one fetch. Either URL or Host (with optional Scheme,
// Port and Path) addresses it.
type RequestEntry struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	URL     string            `yaml:"url"`
	Scheme  string            `yaml:"scheme"`
	Host    string            `yaml:"host"`
	Port    int               `yaml:"port"`
	Path    string            `yaml:"path"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`
	Timeout string            `yaml:"timeout"`
	Query   string            `yaml:"query"`
	Output  string            `yaml:"output"`
}

// LoadRunFile reads and validates a run file.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}
	if len(rf.Requests) == 0 {
		return nil, fmt.Errorf("run file %s has no requests", path)
	}
	return &rf, nil
}

// jobs converts every entry, reporting all invalid entries at once.
func (rf *RunFile) jobs() ([]job, error) {
	var (
		jobs []job
		errs []error
	)
	for i, entry := range rf.Requests {
		j, err := entry.job(i, rf.Defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("request %d (%s): %w", i+1, entry.label(i), err))
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, errors.Join(errs...)
}

func (e RequestEntry) label(i int) string {
	if e.Name != "" {
		return e.Name
	}
	if e.URL != "" {
		return e.URL
	}
	return fmt.Sprintf("#%d", i+1)
}

func (e RequestEntry) job(i int, defaults RequestDefaults) (job, error) {
	kind, err := parseKind(e.Kind)
	if err != nil {
		return job{}, err
	}
	if e.Query != "" && kind != netrequest.KindJSON {
		return job{}, errors.New("query is only valid for kind json")
	}
	if e.Output != "" && kind != netrequest.KindBinary {
		return job{}, errors.New("output is only valid for kind binary")
	}

	var target netrequest.Target
	switch {
	case e.URL != "" && e.Host != "":
		return job{}, errors.New("set either url or host, not both")
	case e.URL != "":
		target = netrequest.URL(e.URL)
	case e.Host != "":
		target = netrequest.OptionsTarget{Scheme: e.Scheme, Host: e.Host, Port: e.Port, Path: e.Path}
	default:
		return job{}, errors.New("url or host is required")
	}

	timeout, err := parseTimeout(e.Timeout, defaults.Timeout)
	if err != nil {
		return job{}, err
	}

	header := http.Header{}
	for k, v := range defaults.Headers {
		header.Set(k, v)
	}
	for k, v := range e.Headers {
		header.Set(k, v)
	}

	return job{
		name: e.label(i),
		kind: kind,
		spec: netrequest.RequestSpec{
			Target:  target,
			Method:  e.Method,
			Header:  header,
			Body:    e.Body,
			Timeout: timeout,
		},
		query:  e.Query,
		output: e.Output,
	}, nil
}

func parseKind(s string) (netrequest.Kind, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return netrequest.KindJSON, nil
	case "text":
		return netrequest.KindText, nil
	case "binary":
		return netrequest.KindBinary, nil
	default:
		return "", fmt.Errorf("unknown kind %q, want json, text or binary", s)
	}
}

func parseTimeout(value, fallback string) (time.Duration, error) {
	if value == "" {
		value = fallback
	}
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %s", d)
	}
	return d, nil
}

func newRunCommand(s *session) *cobra.Command {
	var bail bool
	cmd := &cobra.Command{
		Use:   "run <file.yaml>",
		Short: "Run the fetches described in a YAML file",
		Long: `Run every request in a YAML run file in order and print a summary line
for each. The exit code is 1 if any request failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := LoadRunFile(args[0])
			if err != nil {
				return err
			}
			jobs, err := rf.jobs()
			if err != nil {
				return err
			}

			failed := 0
			for _, j := range jobs {
				if cmd.Context().Err() != nil {
					break
				}
				if err := s.perform(cmd.Context(), j); err != nil {
					if !errors.Is(err, ErrFetchFailed) {
						return err
					}
					failed++
					if bail {
						break
					}
				}
			}

			s.app.Logger.Debug("run finished",
				zap.String("file", args[0]),
				zap.Int("requests", len(jobs)),
				zap.Int("failed", failed))
			if failed > 0 || cmd.Context().Err() != nil {
				return fmt.Errorf("%d of %d requests failed: %w", failed, len(jobs), ErrFetchFailed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&bail, "bail", false, "Stop at the first failed request")
	return cmd
}
