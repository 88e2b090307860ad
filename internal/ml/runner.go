package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner invokes the Python model scripts as one-shot subprocesses. Each call
// runs at most one process, bounded by Timeout, and is cancelled when the
// caller's context is cancelled (client disconnect included).
type Runner struct {
	PythonBin string
	ScriptDir string
	TempDir   string
	Timeout   time.Duration

	logger *zap.Logger
}

func NewRunner(pythonBin, scriptDir, tempDir string, timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		PythonBin: pythonBin,
		ScriptDir: scriptDir,
		TempDir:   tempDir,
		Timeout:   timeout,
		logger:    logger,
	}
}

var _ Classifier = (*Runner)(nil)
var _ ChatResponder = (*Runner)(nil)

// Classify runs predict.py against the uploaded image. The caller owns the
// image file and remains responsible for removing it.
func (r *Runner) Classify(ctx context.Context, imagePath string) (*ClassificationResult, error) {
	stdout, err := r.run(ctx, "predict", "predict.py", imagePath)
	if err != nil {
		return nil, err
	}

	var result ClassificationResult
	if err := json.Unmarshal(stdout, &result); err != nil {
		return nil, &AdapterError{Op: "predict", cause: fmt.Errorf("unparseable output: %w", err)}
	}
	// The script reports its own internal failures as {"error": ...} with no
	// status; that is an adapter failure, not a classification outcome.
	if result.Status == "" {
		return nil, &AdapterError{Op: "predict", Stderr: result.Error, cause: errors.New("script reported error")}
	}
	return &result, nil
}

type chatOutput struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
	Error    string `json:"error"`
}

// Respond runs chat.py with the rolling context. The context is passed via a
// temp file which is removed on every exit path.
func (r *Runner) Respond(ctx context.Context, history []Turn) (string, error) {
	payload, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat history: %w", err)
	}

	tempPath := filepath.Join(r.TempDir, fmt.Sprintf("chat_%s.json", uuid.NewString()))
	if err := os.WriteFile(tempPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("failed to write context file: %w", err)
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			r.logger.Warn("failed to remove context file", zap.String("path", tempPath), zap.Error(err))
		}
	}()

	stdout, err := r.run(ctx, "chat", "chat.py", tempPath)
	if err != nil {
		return "", err
	}

	var out chatOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return "", &AdapterError{Op: "chat", cause: fmt.Errorf("unparseable output: %w", err)}
	}
	if out.Error != "" || !out.Success {
		return "", &AdapterError{Op: "chat", Stderr: out.Error, cause: errors.New("script reported error")}
	}
	return out.Response, nil
}

func (r *Runner) run(ctx context.Context, op, script string, arg string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	scriptPath := filepath.Join(r.ScriptDir, script)
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, &AdapterError{Op: op, cause: fmt.Errorf("script not found: %s", scriptPath)}
	}

	cmd := exec.CommandContext(ctx, r.PythonBin, scriptPath, arg)
	// Don't let orphaned children of a killed script hold the pipes open.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("model process finished",
		zap.String("op", op),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)

	if ctx.Err() != nil {
		return nil, &AdapterError{Op: op, Stderr: stderr.String(), cause: ctx.Err()}
	}
	if err != nil {
		return nil, &AdapterError{Op: op, Stderr: stderr.String(), cause: err}
	}
	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return nil, &AdapterError{Op: op, Stderr: stderr.String(), cause: errors.New("no output from script")}
	}
	return stdout.Bytes(), nil
}
