package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/formatter"
	"github.com/kyleking/askdb/internal/pipeline"
)

const maxQuestionLength = 1000

var stepLabels = map[pipeline.Action]string{
	pipeline.ActionDiscoverDatabases: "Discovering databases",
	pipeline.ActionSelectDatabase:    "Choosing a database",
	pipeline.ActionDiscoverTables:    "Discovering tables",
	pipeline.ActionSelectTable:       "Choosing a table",
	pipeline.ActionAnalyzeSchema:     "Reading the schema",
	pipeline.ActionGetSample:         "Sampling rows",
	pipeline.ActionGenerateSQL:       "Writing SQL",
	pipeline.ActionExecuteQuery:      "Running the query",
	pipeline.ActionFormatResponse:    "Phrasing the answer",
}

func AskCommand() *cli.Command {
	return &cli.Command{
		Name:  "ask",
		Usage: "Answer a question from the database",
		Description: `Run the full pipeline for a question. When no question is given on the
command line it is read from standard input.

Examples:
  askdb ask "Show me users in Lyon"
  askdb ask --show-sql "How many orders are over 20?"
  askdb --format json ask "Which city has the most users?"`,
		ArgsUsage: " [question]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "show-sql", Usage: "Print the SQL that produced the answer"},
			&cli.BoolFlag{Name: "no-spinner", Usage: "Disable the progress spinner"},
		},
		Action: withSetup(runAsk),
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		var err error

		question, err = promptQuestion(os.Stdin, os.Stderr)
		if err != nil {
			return err
		}
	}

	question, err := validateQuestion(question)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	animate := !cmd.Bool("no-spinner") && formatter.ParseFormat(format) == formatter.FormatTable
	prog := newProgress(os.Stderr, animate, cmd.Bool("verbose"))

	defer prog.stop()

	a, err := appFromContext(ctx, format, prog.options()...)
	if err != nil {
		return err
	}

	return runAskWithApp(ctx, a, question, cmd.Bool("show-sql"), prog.stop)
}

// runAskWithApp runs the pipeline and prints the answer. beforePrint runs
// once the pipeline is done, so progress output does not interleave.
func runAskWithApp(ctx context.Context, a *app, question string, showSQL bool, beforePrint func()) error {
	result := a.pipeline.Run(ctx, question)

	if beforePrint != nil {
		beforePrint()
	}

	failed := result.Failed()
	if failed != nil && a.format != formatter.FormatJSON {
		return errors.New(failed.ErrorType, failed.Message)
	}

	if err := a.print(a.formatter.FormatAnswer(result, a.format, showSQL)); err != nil {
		return err
	}

	if failed != nil {
		return errors.New(failed.ErrorType, failed.Message)
	}

	return nil
}

func promptQuestion(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Question: ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read question: %w", err)
		}

		return "", errors.New(errors.ErrTypeValidation, "question is required")
	}

	return scanner.Text(), nil
}

func validateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)

	if question == "" {
		return "", errors.New(errors.ErrTypeValidation, "question is required").
			WithSuggestion(`Pass the question as an argument, e.g. askdb ask "Show me users in Lyon"`)
	}

	if len([]rune(question)) > maxQuestionLength {
		return "", errors.Newf(errors.ErrTypeValidation, "question is too long (max %d characters)", maxQuestionLength)
	}

	return question, nil
}

// progress reports pipeline steps on the terminal
type progress struct {
	w         io.Writer
	spinner   *spinner.Spinner
	verbose   bool
	formatter *formatter.Formatter
}

func newProgress(w io.Writer, animate, verbose bool) *progress {
	p := &progress{w: w, verbose: verbose, formatter: formatter.NewFormatter()}

	if animate {
		p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	}

	return p
}

func (p *progress) options() []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithStepStart(p.start),
		pipeline.WithProgress(p.done),
	}
}

func (p *progress) start(action pipeline.Action) {
	if p.spinner == nil {
		return
	}

	p.spinner.Lock()
	p.spinner.Suffix = " " + stepLabels[action] + "..."
	p.spinner.Unlock()

	if !p.spinner.Active() {
		p.spinner.Start()
	}
}

func (p *progress) done(env pipeline.Envelope) {
	if !p.verbose && env.OK() {
		return
	}

	p.stop()
	fmt.Fprintln(p.w, p.formatter.FormatStep(env))
}

func (p *progress) stop() {
	if p.spinner != nil && p.spinner.Active() {
		p.spinner.Stop()
	}
}
