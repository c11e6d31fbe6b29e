package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/selvaebi/eva-pipeline/internal/app"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/listener/logging"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

var (
	runParams []string
	runNext   bool
)

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a job to completion",
	Long: `Run launches a job with the given parameters and waits for it to finish.

A failed or stopped execution is restarted from its last checkpoint by running
the same job with the same parameters again. --next starts a new instance instead.

Exit status is 0 when the job completes, 1 when it fails or is stopped and 2
when the parameters are invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(runParams)
		if err != nil {
			return &exitError{code: exitInvalid, err: err}
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runJob(ctx, args[0], params)
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "job parameter as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runNext, "next", false, "start a new job instance by adding a run.id parameter")
}

// parseParams turns key=value pairs into job parameters. The value may contain '='.
func parseParams(pairs []string) (model.JobParameters, error) {
	params := model.NewJobParameters()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return params, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params.Put(key, value)
	}
	return params, nil
}

func newApplication() (*app.Application, error) {
	return app.New(app.Options{
		EmbeddedConfig: embeddedConfig,
		EnvFilePath:    envFile,
		ConfigFilePath: configFile,
	})
}

func runJob(ctx context.Context, jobName string, params model.JobParameters) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(context.Background()); err != nil {
			logger.Errorf("Failed to stop the application: %v", err)
		}
	}()

	if runNext {
		if params, err = application.NextParameters(ctx, jobName, params); err != nil {
			return err
		}
	}
	je, err := application.Launch(ctx, jobName, params)
	if err != nil {
		if exception.IsValidationError(err) {
			return &exitError{code: exitInvalid, err: err}
		}
		return err
	}
	return result(je)
}

// result reports the execution and maps its status to the exit code.
func result(je *model.JobExecution) error {
	for _, se := range je.StepExecutions {
		fmt.Printf("%-24s %-10s %s\n", se.StepName, se.Status, logging.Summary(se))
	}
	fmt.Printf("%s %s (execution %s)\n", je.JobName, je.Status, je.ID)
	if je.Status == model.BatchStatusCompleted {
		return nil
	}
	return &exitError{code: exitFailed}
}
