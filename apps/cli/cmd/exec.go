package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/export/metrics"
	"github.com/abdul-hamid-achik/postbox/packages/import/curl"
	"github.com/abdul-hamid-achik/postbox/packages/output"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var (
	execCollectionFlag string
	execRequestFlag    string
	execEnvFlag        string
	execNameFlag       string
	execMethodFlag     string
	execHeaderFlags    []string
	execBodyFlag       string
	execBodyTypeFlag   string
	execCurlFlag       string
	execSaveOnlyFlag   bool
	execQueryFlag      string

	outputFlag     string
	outputFileFlag string
	verboseFlag    bool
)

var execCmd = &cobra.Command{
	Use:   "exec [url]",
	Short: "Submit and execute a request, or re-run a stored one",
	Long: `Submit a new request definition into a collection and execute it, or
re-run a stored request by id. {{placeholders}} are resolved from the
environment set given with --env (id or name); unknown placeholders are
sent verbatim and reported.

Examples:
  postbox exec -u alice -c <collection-id> https://api.example.com/users
  postbox exec -u alice -c <collection-id> -X POST https://api.example.com/users \
    -H 'Content-Type: application/json' -d '{"name":"{{userName}}"}' --env dev
  postbox exec -u alice -c <collection-id> --curl "curl -X DELETE https://api.example.com/users/1"
  postbox exec -u alice --request <request-id> --env staging
  postbox exec -u alice --request <request-id> --query data.0.id`,
	Args: cobra.MaximumNArgs(1),
	RunE: execCommand,
}

func init() {
	execCmd.Flags().StringVarP(&execCollectionFlag, "collection", "c", "", "Collection to store a new request in")
	execCmd.Flags().StringVarP(&execRequestFlag, "request", "r", "", "Stored request to re-run")
	execCmd.Flags().StringVarP(&execEnvFlag, "env", "e", getEnvString("POSTBOX_ENV", ""), "Environment set id or name (env: POSTBOX_ENV)")
	execCmd.Flags().StringVarP(&execNameFlag, "name", "n", "", "Request name (default: method and URL)")
	execCmd.Flags().StringVarP(&execMethodFlag, "method", "X", "GET", "HTTP method")
	execCmd.Flags().StringArrayVarP(&execHeaderFlags, "header", "H", nil, "Header as 'Key: Value' (repeatable, order kept)")
	execCmd.Flags().StringVarP(&execBodyFlag, "data", "d", "", "Request body, @file reads it from a file")
	execCmd.Flags().StringVar(&execBodyTypeFlag, "body-type", "", "Body type: raw, form-data, x-www-form-urlencoded, binary")
	execCmd.Flags().StringVar(&execCurlFlag, "curl", "", "Build the definition from a curl command")
	execCmd.Flags().BoolVar(&execSaveOnlyFlag, "save-only", false, "Store the request without executing it")
	execCmd.Flags().StringVarP(&execQueryFlag, "query", "q", "", "Print only this gjson path of the response body")
	addOutputFlags(execCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("POSTBOX_OUTPUT", output.FormatConsole), "Output format: console, json (env: POSTBOX_OUTPUT)")
	cmd.Flags().StringVar(&outputFileFlag, "output-file", "", "Write output to file (default: stdout)")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show URLs, response headers and bodies")
}

// newFormatter opens the output destination and builds the formatter. The
// returned close func flushes and closes it.
func newFormatter(cmd *cobra.Command, noColor bool) (output.Formatter, func() error, error) {
	var w io.Writer = cmd.OutOrStdout()
	var file *os.File
	if outputFileFlag != "" {
		var err error
		file, err = os.Create(outputFileFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot create output file: %w", err)
		}
		w = file
	}
	formatter, err := output.New(strings.ToLower(outputFlag), w, verboseFlag, noColor || file != nil)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, nil, usageError(err)
	}
	return formatter, func() error {
		err := formatter.Flush()
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

func execCommand(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	if (execRequestFlag == "") == (execCollectionFlag == "") {
		return usageError(errors.New("exactly one of --collection or --request is required"))
	}

	var def model.Definition
	if execRequestFlag == "" {
		if def, err = definitionFromFlags(args); err != nil {
			return err
		}
	} else if len(args) > 0 || execCurlFlag != "" {
		return usageError(errors.New("--request re-runs the stored definition; a URL or --curl cannot be given"))
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	formatter, closeOut, err := newFormatter(cmd, a.cfg.GetNoColor())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	run := a.runner(metrics.NoOpRecorder{})
	var report *runner.Report
	if execRequestFlag != "" {
		report, err = run.Rerun(ctx, runner.RerunInput{Owner: user, RequestID: execRequestFlag, Environment: execEnvFlag})
	} else {
		report, err = run.Submit(ctx, runner.SubmitInput{
			Owner:        user,
			CollectionID: execCollectionFlag,
			Environment:  execEnvFlag,
			Definition:   def,
			Execute:      !execSaveOnlyFlag,
		})
	}
	if err != nil {
		formatter.FormatError(err)
		_ = closeOut()
		return reportedError(err)
	}

	if execQueryFlag != "" {
		if err := printQuery(cmd.OutOrStdout(), report, execQueryFlag); err != nil {
			_ = closeOut()
			return err
		}
	} else {
		formatter.FormatReport(report)
	}
	if err := closeOut(); err != nil {
		return err
	}
	if report.Outcome.Err != nil {
		return reportedError(report.Outcome.Err)
	}
	return nil
}

// definitionFromFlags builds a definition from --curl or from the URL
// argument and request flags.
func definitionFromFlags(args []string) (model.Definition, error) {
	if execCurlFlag != "" {
		if len(args) > 0 {
			return model.Definition{}, usageError(errors.New("give either a URL or --curl, not both"))
		}
		def, err := curl.NewConverter().ConvertCommand(execCurlFlag)
		if err != nil {
			return model.Definition{}, err
		}
		if execNameFlag != "" {
			def.Name = execNameFlag
		}
		return def, nil
	}

	if len(args) == 0 {
		return model.Definition{}, usageError(errors.New("a URL argument or --curl is required"))
	}
	method := strings.ToUpper(execMethodFlag)
	def := model.Definition{
		Name:     execNameFlag,
		Method:   model.Method(method),
		URL:      args[0],
		BodyType: model.BodyType(execBodyTypeFlag),
	}
	if def.Name == "" {
		def.Name = method + " " + args[0]
	}
	for _, h := range execHeaderFlags {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return model.Definition{}, errdef.New(errdef.KindValidation, "header %q must be 'Key: Value'", h)
		}
		def.Headers = append(def.Headers, model.Header{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	if execBodyFlag != "" {
		body := execBodyFlag
		if path, ok := strings.CutPrefix(body, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return model.Definition{}, fmt.Errorf("read body: %w", err)
			}
			body = string(data)
		}
		def.Body = &body
	}
	return def, nil
}

// printQuery writes the gjson path of the response body.
func printQuery(w io.Writer, report *runner.Report, path string) error {
	result := report.Outcome.Result
	if result == nil {
		return errdef.New(errdef.KindProtocol, "no response to query")
	}
	if !gjson.Valid(result.Body) {
		return errdef.New(errdef.KindMalformedBody, "response body is not JSON")
	}
	value := gjson.Get(result.Body, path)
	if !value.Exists() {
		return errdef.New(errdef.KindNotFound, "path %q not found in response", path)
	}
	if value.Type == gjson.String {
		_, err := fmt.Fprintln(w, value.String())
		return err
	}
	_, err := fmt.Fprintln(w, value.Raw)
	return err
}
