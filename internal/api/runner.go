package api

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TrainRequest carries the parameters relayed to the train command.
type TrainRequest struct {
	DataPath  string
	Model     string
	Factors   []string
	Horizon   int
	Eps       float64
	DropEqual bool
	Scale     bool
	TestSize  float64
	OutDir    string
}

// CmdRunner shells out to the pipeline binaries and relays their JSON. The
// API layer never runs training or backtesting in-process; the pipeline is
// an external collaborator invoked as a subprocess.
type CmdRunner struct {
	logger      *zap.Logger
	trainBin    string
	backtestBin string
	metrics     *Metrics
}

// NewCmdRunner creates a runner for the configured binaries.
func NewCmdRunner(logger *zap.Logger, trainBin, backtestBin string, metrics *Metrics) *CmdRunner {
	return &CmdRunner{
		logger:      logger,
		trainBin:    trainBin,
		backtestBin: backtestBin,
		metrics:     metrics,
	}
}

// args renders the request as train CLI flags.
func (req TrainRequest) args() []string {
	args := []string{
		"--data", req.DataPath,
		"--model", req.Model,
		"--factors", strings.Join(req.Factors, ","),
		"--horizon", strconv.Itoa(req.Horizon),
		"--eps", strconv.FormatFloat(req.Eps, 'g', -1, 64),
		"--test_size", strconv.FormatFloat(req.TestSize, 'g', -1, 64),
		"--outdir", req.OutDir,
	}
	if req.DropEqual {
		args = append(args, "--drop_equal")
	}
	if req.Scale {
		args = append(args, "--scale")
	}
	return args
}

// Train invokes the train command and returns its stdout (the meta JSON).
func (r *CmdRunner) Train(ctx context.Context, req TrainRequest) ([]byte, error) {
	return r.run(ctx, "train", r.trainBin, req.args())
}

// Backtest invokes the backtest command and returns its stdout (the payload
// JSON).
func (r *CmdRunner) Backtest(ctx context.Context, artifactDir, dataPath string, horizon int) ([]byte, error) {
	args := []string{
		"--artdir", artifactDir,
		"--data", dataPath,
		"--horizon", strconv.Itoa(horizon),
	}
	return r.run(ctx, "backtest", r.backtestBin, args)
}

// run executes one subprocess; a non-zero exit surfaces stderr as the error
// so fatal pipeline conditions reach the client as diagnostics.
func (r *CmdRunner) run(ctx context.Context, command, bin string, args []string) ([]byte, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	r.metrics.Run(command, err, time.Since(start))

	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		r.logger.Error("pipeline command failed",
			zap.String("command", command),
			zap.String("bin", bin),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: %s", command, msg)
	}

	r.logger.Info("pipeline command finished",
		zap.String("command", command),
		zap.Duration("elapsed", time.Since(start)),
	)
	return bytes.TrimSpace(stdout.Bytes()), nil
}
