package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	execDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assess",
		Subsystem: "sandbox",
		Name:      "execution_duration_seconds",
		Help:      "Duration of sandboxed test-case executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	execTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "sandbox",
		Name:      "execution_timeouts_total",
		Help:      "Number of executions that hit the timeout",
	}, []string{"language"})

	execFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "sandbox",
		Name:      "execution_failures_total",
		Help:      "Number of executions that resulted in an error",
	}, []string{"language"})
)

// ErrExecutionTimeout indicates the candidate program exceeded the time limit.
var ErrExecutionTimeout = errors.New("execution timed out")

// ErrExecutionUnavailable indicates the sandbox backend cannot run code at all.
var ErrExecutionUnavailable = errors.New("execution backend unavailable")

// ErrUnsupportedLanguage indicates the requested language has no sandbox image.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// TestCase is one input/expected-output pair from a challenge definition.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected_output"`
	Hidden   bool   `json:"is_hidden"`
}

// Request describes a candidate program to run against a set of test cases.
type Request struct {
	Code     string
	Language string
	Tests    []TestCase
}

// TestResult is the outcome of one test case. Actual output is withheld for
// hidden cases so it never leaks back to the candidate.
type TestResult struct {
	TestCase int    `json:"test_case"`
	Passed   bool   `json:"passed"`
	Input    string `json:"input,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Hidden   bool   `json:"hidden"`
}

// Result summarises a full sandbox run.
type Result struct {
	Stdout      string       `json:"stdout"`
	Stderr      string       `json:"stderr"`
	DurationMs  int64        `json:"execution_time_ms"`
	PassedTests int          `json:"passed_tests"`
	TotalTests  int          `json:"total_tests"`
	Tests       []TestResult `json:"results"`
}

// Executor defines the behaviour for running candidate code inside a sandbox.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

type languageConfig struct {
	Image    string
	FileName string
	RunCmd   string
}

// Config groups executor configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkspaceRoot string
	Logger        zerolog.Logger
}

// DockerExecutor runs candidate code in throwaway Docker containers, one
// container per test case, with networking disabled.
type DockerExecutor struct {
	client    *client.Client
	cfg       Config
	tracer    trace.Tracer
	logger    zerolog.Logger
	languages map[string]languageConfig
}

// NewDockerExecutor constructs a Docker backed executor.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/hireloop/assess-api/pkg/sandbox"),
		logger: logger,
		languages: map[string]languageConfig{
			"python": {
				Image:    "python:3.11-alpine",
				FileName: "main.py",
				RunCmd:   "python main.py",
			},
			"javascript": {
				Image:    "node:20-alpine",
				FileName: "main.js",
				RunCmd:   "node main.js",
			},
			"go": {
				Image:    "golang:1.22-alpine",
				FileName: "main.go",
				RunCmd:   "go run main.go",
			},
		},
	}, nil
}

// Execute runs the submitted program once per test case and compares trimmed
// stdout against the expected output.
func (e *DockerExecutor) Execute(parent context.Context, req Request) (Result, error) {
	language := strings.ToLower(strings.TrimSpace(req.Language))
	langCfg, ok := e.languages[language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	ctx, span := e.tracer.Start(parent, "sandbox.execute", trace.WithAttributes(
		attribute.String("sandbox.language", language),
		attribute.Int("sandbox.test_cases", len(req.Tests)),
	))
	defer span.End()

	workspace, err := os.MkdirTemp(e.cfg.WorkspaceRoot, "sandbox-")
	if err != nil {
		return Result{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, langCfg.FileName), []byte(req.Code), 0600); err != nil {
		return Result{}, fmt.Errorf("write source: %w", err)
	}

	result := Result{TotalTests: len(req.Tests)}
	start := time.Now()

	var stderr strings.Builder
	for i, test := range req.Tests {
		inputFile := fmt.Sprintf("input_%d.txt", i)
		if err := os.WriteFile(filepath.Join(workspace, inputFile), []byte(test.Input), 0600); err != nil {
			return Result{}, fmt.Errorf("write test input: %w", err)
		}

		run, runErr := e.runContainer(ctx, langCfg.Image, fmt.Sprintf("%s < %s", langCfg.RunCmd, inputFile), workspace)
		result.DurationMs = time.Since(start).Milliseconds()

		if runErr != nil {
			execDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
			if errors.Is(runErr, ErrExecutionTimeout) {
				execTimeouts.WithLabelValues(language).Inc()
			} else {
				execFailures.WithLabelValues(language).Inc()
			}
			span.RecordError(runErr)
			span.SetStatus(codes.Error, runErr.Error())
			result.Stderr = strings.TrimSpace(stderr.String() + "\n" + run.stderr)
			return result, runErr
		}

		actual := strings.TrimSpace(run.stdout)
		passed := run.exitCode == 0 && actual == strings.TrimSpace(test.Expected)
		if passed {
			result.PassedTests++
		}

		tr := TestResult{TestCase: i + 1, Passed: passed, Hidden: test.Hidden}
		if !test.Hidden {
			tr.Input = test.Input
			tr.Expected = test.Expected
			tr.Actual = actual
		}
		result.Tests = append(result.Tests, tr)
		result.Stdout = run.stdout
		if run.stderr != "" {
			fmt.Fprintf(&stderr, "test %d: %s\n", i+1, strings.TrimSpace(run.stderr))
		}
	}

	result.Stderr = strings.TrimSpace(stderr.String())
	result.DurationMs = time.Since(start).Milliseconds()
	execDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())

	return result, nil
}

type containerRun struct {
	stdout   string
	stderr   string
	exitCode int
}

func (e *DockerExecutor) runContainer(parent context.Context, image, command, workspace string) (containerRun, error) {
	ctx, cancel := context.WithTimeout(parent, e.cfg.Timeout)
	defer cancel()

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    e.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: e.cfg.CPUShares,
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: "/workspace",
		}},
	}

	cfg := &container.Config{
		Image:        image,
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	}

	resp, err := e.client.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return containerRun{}, fmt.Errorf("%w: container create: %v", ErrExecutionUnavailable, err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancelRemove := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelRemove()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return containerRun{}, fmt.Errorf("%w: container start: %v", ErrExecutionUnavailable, err)
	}

	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	run := containerRun{}
	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			e.killContainer(containerID)
			return run, fmt.Errorf("%w after %s", ErrExecutionTimeout, e.cfg.Timeout)
		}
		return run, fmt.Errorf("%w: container wait: %v", ErrExecutionUnavailable, err)
	case status := <-statusCh:
		run.exitCode = int(status.StatusCode)
	case <-ctx.Done():
		e.killContainer(containerID)
		return run, fmt.Errorf("%w after %s", ErrExecutionTimeout, e.cfg.Timeout)
	}

	logReader, err := e.client.ContainerLogs(parent, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return run, nil
	}
	defer logReader.Close()

	stdout, stderr, err := splitDockerLogs(logReader)
	if err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		return run, nil
	}
	run.stdout = stdout
	run.stderr = stderr

	return run, nil
}

func (e *DockerExecutor) killContainer(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
		e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
	}
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
