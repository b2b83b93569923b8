package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// job is one fetch the CLI performs, either from arguments or a run file.
type job struct {
	name   string
	kind   netrequest.Kind
	spec   netrequest.RequestSpec
	query  string
	output string
}

func newJSONCommand(s *session) *cobra.Command {
	var query, data string
	cmd := &cobra.Command{
		Use:   "json <url>",
		Short: "Fetch and print a JSON document",
		Long: `Fetch a JSON document and pretty-print it to stdout.

Redirects are not followed; a 301/302 is reported with its Location.

Examples:
  toolfetch json https://nodejs.org/dist/index.json --query 0.version
  toolfetch json https://api.example.com/releases -X POST --data '{"channel":"lts"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := s.requestSpec(args[0], data)
			if err != nil {
				return err
			}
			return s.perform(cmd.Context(), job{name: args[0], kind: netrequest.KindJSON, spec: spec, query: query})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "gjson path to print instead of the whole document")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func newTextCommand(s *session) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "text <url>",
		Short: "Fetch and print a text document",
		Long: `Fetch a text document, e.g. a checksum list, and print it to stdout.

Redirects are not followed; a 301/302 is reported with its Location.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := s.requestSpec(args[0], data)
			if err != nil {
				return err
			}
			return s.perform(cmd.Context(), job{name: args[0], kind: netrequest.KindText, spec: spec})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func newBinaryCommand(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "binary <url>",
		Short: "Download a binary, following redirects",
		Long: `Download a binary artifact, following up to 5 redirects.

With --output the body is streamed to a file; otherwise it is written to
stdout once complete.

Examples:
  toolfetch binary https://nodejs.org/dist/v20.11.1/node-v20.11.1-linux-x64.tar.xz -o node.tar.xz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := s.requestSpec(args[0], "")
			if err != nil {
				return err
			}
			return s.perform(cmd.Context(), job{name: args[0], kind: netrequest.KindBinary, spec: spec, output: output})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the body to this file")
	return cmd
}

// requestSpec builds a spec from the shared flags.
func (s *session) requestSpec(target, data string) (netrequest.RequestSpec, error) {
	header, err := s.header()
	if err != nil {
		return netrequest.RequestSpec{}, err
	}
	spec := netrequest.RequestSpec{
		Target: netrequest.URL(target),
		Method: s.flags.method,
		Header: header,
	}
	if data != "" {
		if !gjson.Valid(data) {
			return netrequest.RequestSpec{}, fmt.Errorf("--data is not valid JSON")
		}
		spec.Body = []byte(data)
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}
	return spec, nil
}

// perform runs one job, prints its payload to stdout and its summary to
// stderr. It returns ErrFetchFailed for unsuccessful results.
func (s *session) perform(ctx context.Context, j job) error {
	progress := &progressLine{w: s.stderr}
	if s.flags.progress && j.spec.Progress == nil {
		j.spec.Progress = progress.update
	}

	s.app.Logger.Debug("fetch",
		zap.String("name", j.name),
		zap.String("kind", string(j.kind)))

	release := func(bool) {}
	if u, err := j.spec.URL(); err == nil {
		r, err := s.app.Breakers.Acquire(u.Host)
		if err != nil {
			printSummary(s.stderr, summary{name: j.name, message: err.Error()})
			return ErrFetchFailed
		}
		release = r
	}

	var sm summary
	switch j.kind {
	case netrequest.KindJSON:
		sm = s.performJSON(ctx, j)
	case netrequest.KindText:
		res := s.app.Engine.FetchText(ctx, j.spec)
		if res.Success {
			fmt.Fprint(s.stdout, res.Payload)
		}
		sm = summarize(j.name, res)
	case netrequest.KindBinary:
		if j.output != "" {
			sm = s.performDownload(ctx, j)
		} else {
			res := s.app.Engine.FetchBinary(ctx, j.spec)
			sm = summarize(j.name, res)
			if res.Success {
				_, _ = s.stdout.Write(res.Payload)
				sm.detail = formatBytes(int64(len(res.Payload))) + ", " + mimetype.Detect(res.Payload).String()
			}
		}
	default:
		release(true)
		return fmt.Errorf("unknown kind %q", j.kind)
	}
	progress.finish()
	release(hostHealthy(ctx, sm))

	printSummary(s.stderr, sm)
	if !sm.success {
		return ErrFetchFailed
	}
	return nil
}

// hostHealthy reports whether an outcome says nothing bad about the host.
// Transport failures and 5xx count against it; aborts do not.
func hostHealthy(ctx context.Context, sm summary) bool {
	if sm.success || ctx.Err() != nil {
		return true
	}
	return sm.status != 0 && sm.status < 500
}

func (s *session) performJSON(ctx context.Context, j job) summary {
	res := s.app.Engine.FetchJSON(ctx, j.spec)
	sm := summarize(j.name, res)
	if !res.Success {
		return sm
	}
	out, err := renderJSON(res.Payload, j.query)
	if err != nil {
		sm.success = false
		sm.message = err.Error()
		return sm
	}
	fmt.Fprintln(s.stdout, out)
	return sm
}

func (s *session) performDownload(ctx context.Context, j job) summary {
	f, err := os.Create(j.output)
	if err != nil {
		return summary{name: j.name, message: fmt.Sprintf("failed to create %s: %v", j.output, err)}
	}
	res := s.app.Engine.Download(ctx, j.spec, f)
	closeErr := f.Close()

	sm := summarize(j.name, res)
	if res.Success && closeErr != nil {
		sm.success = false
		sm.message = fmt.Sprintf("failed to close %s: %v", j.output, closeErr)
	}
	if !sm.success {
		if err := os.Remove(j.output); err != nil {
			s.app.Logger.Warn("failed to remove partial download", zap.String("file", j.output), zap.Error(err))
		}
		return sm
	}

	sm.detail = formatBytes(res.Payload) + " -> " + j.output
	if mt, err := mimetype.DetectFile(j.output); err == nil {
		sm.detail += ", " + mt.String()
	}
	return sm
}

// renderJSON pretty-prints v, or the part of it query selects.
func renderJSON(v any, query string) (string, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	if query == "" {
		return pretty(data), nil
	}

	r := gjson.GetBytes(data, query)
	if !r.Exists() {
		return "", fmt.Errorf("query %q matched nothing", query)
	}
	if r.IsObject() || r.IsArray() {
		return pretty([]byte(r.Raw)), nil
	}
	return r.String(), nil
}

func pretty(data []byte) string {
	return strings.TrimRight(gjson.GetBytes(data, "@pretty").Raw, "\n")
}
