package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDecoderCommand builds the rtl_fm | multimon-ng pipeline for the
// given frequency (e.g. "169.65M"), tuner gain and ppm correction.
func DefaultDecoderCommand(frequency string, gain, ppm int) string {
	return fmt.Sprintf(
		"rtl_fm -f %s -M fm -s 22050 -g %d -p %d | multimon-ng -a FLEX -a POCSAG512 -a POCSAG1200 -a POCSAG2400 -t raw -",
		frequency, gain, ppm,
	)
}

// CheckTools verifies the receiver programs are on PATH.
func CheckTools() error {
	var errs []error
	for _, tool := range []string{"rtl_fm", "multimon-ng"} {
		if _, err := exec.LookPath(tool); err != nil {
			errs = append(errs, fmt.Errorf("%s: not found, please install RTL-SDR software: %w", tool, err))
		}
	}
	return errors.Join(errs...)
}

// CommandSource runs a shell pipeline and exposes its stdout as the line
// stream. The pipeline runs in its own process group so cancellation stops
// every stage, not only the shell.
type CommandSource struct {
	command     string
	gracePeriod time.Duration
	logger      zerolog.Logger

	cmd *exec.Cmd
}

// NewCommandSource creates a source for command. It is started by Start.
func NewCommandSource(command string, logger zerolog.Logger) *CommandSource {
	return &CommandSource{
		command:     command,
		gracePeriod: 3 * time.Second,
		logger:      logger.With().Str("component", "decoder").Logger(),
	}
}

// Start launches the pipeline. Cancelling ctx terminates it, which in turn
// ends the returned stream.
func (s *CommandSource) Start(ctx context.Context) (io.Reader, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	configureProcessGroup(cmd, s.gracePeriod)
	cmd.WaitDelay = s.gracePeriod

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	s.cmd = cmd
	s.logger.Info().Str("command", s.command).Int("pid", cmd.Process.Pid).Msg("decoder started")

	go s.logStderr(stderr)

	return stdout, nil
}

// Wait waits for the pipeline to exit. Call it after the stream has been
// read to the end.
func (s *CommandSource) Wait() error {
	if s.cmd == nil {
		return nil
	}
	err := s.cmd.Wait()
	s.logger.Info().Err(err).Msg("decoder exited")
	return err
}

func (s *CommandSource) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug().Str("stderr", scanner.Text()).Msg("decoder")
	}
}

// OpenFile opens a replay file of captured decoder output. "-" means stdin.
func OpenFile(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
