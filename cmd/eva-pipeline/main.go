package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/database/gorm/sqlite"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/gcs"
	_ "github.com/selvaebi/eva-pipeline/pkg/batch/adapter/storage/local"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

// embeddedConfig is the default configuration. --config and EVA_* variables override it.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// Process exit codes.
const (
	exitCompleted = 0
	exitFailed    = 1
	exitInvalid   = 2
)

var rootCmd = &cobra.Command{
	Use:   "eva-pipeline",
	Short: "Load genomic variation files into the EVA document store",
	Long: `eva-pipeline runs the EVA loader jobs.

Jobs:
  genotyped-vcf           load a VCF with per-sample genotypes
  aggregated-vcf          load a VCF with per-cohort allele counts
  annotate-variants       load genes and VEP consequences of the loaded variants
  load-sample-properties  load a sample table definition
  export-variants         export the variants as partitioned Parquet files

Examples:
  eva-pipeline run genotyped-vcf --param input.vcf=small.vcf.gz --param input.vcf.id=5 --param input.study.id=7
  eva-pipeline run annotate-variants --config eva.yaml --param input.gtf=genes.gtf ...
  eva-pipeline jobs`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFile string
	envFile    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file overriding the embedded configuration")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", ".env file loaded before the configuration (default ./.env)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobsCmd)
}

// exitError carries the process exit code of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitCompleted
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return exitFailed
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		var exit *exitError
		if !errors.As(err, &exit) || exit.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	logger.Sync()
	os.Exit(exitCode(err))
}
