// Package tasklet holds the single-operation steps of the annotation job.
package tasklet

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/selvaebi/eva-pipeline/pkg/batch/core/application/port"
	"github.com/selvaebi/eva-pipeline/pkg/batch/core/domain/model"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/exception"
	"github.com/selvaebi/eva-pipeline/pkg/batch/support/util/logger"
)

const vepStderrLimit = 4096

// VepTasklet runs the Variant Effect Predictor on the generated input file.
type VepTasklet struct {
	path   string
	args   []string
	input  string
	output string
}

var _ port.Tasklet = (*VepTasklet)(nil)

// NewVepTasklet creates a tasklet running the VEP executable at path with extra args. An
// empty path disables the run: the output is then expected to be produced outside the job.
func NewVepTasklet(path string, args []string, input, output string) *VepTasklet {
	return &VepTasklet{path: path, args: args, input: input, output: output}
}

// Execute runs VEP and waits for it. The step fails when VEP exits with an error or leaves
// no output.
func (t *VepTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.ExitStatus, error) {
	if t.path == "" {
		logger.Infof("No VEP executable configured, expecting the annotation of %s at %s.", t.input, t.output)
		return model.ExitStatusCompleted, nil
	}
	info, err := os.Stat(t.input)
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError("vep", "VEP input is missing", err, false, false)
	}
	if info.Size() == 0 {
		logger.Infof("VEP input %s is empty, nothing to annotate.", t.input)
		return model.ExitStatusCompleted, nil
	}

	args := append([]string{"--input_file", t.input, "--output_file", t.output, "--force_overwrite"}, t.args...)
	cmd := exec.CommandContext(ctx, t.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logger.Infof("Running %s %s", t.path, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError("vep",
			fmt.Sprintf("VEP failed: %s", truncate(stderr.String(), vepStderrLimit)), err, false, false)
	}
	if _, err := os.Stat(t.output); err != nil {
		return model.ExitStatusFailed, exception.NewBatchError("vep", "VEP produced no output", err, false, false)
	}
	if stepExecution != nil && stepExecution.ExecutionContext != nil {
		stepExecution.ExecutionContext.Put("vep.output", t.output)
	}
	return model.ExitStatusCompleted, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
