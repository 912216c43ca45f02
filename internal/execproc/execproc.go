// Package execproc runs local helper programs that take one JSON request on
// stdin and answer with newline-delimited JSON on stdout.
package execproc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/mattn/go-shellwords"
)

const (
	maxLine = 16 << 20
	// waitDelay bounds how long a killed command's children may hold its pipes.
	waitDelay = 500 * time.Millisecond
)

var ErrEmptyCommand = errors.New("command is empty")

type Command struct {
	label string
	argv  []string
}

// Parse splits a shell-style command line. Environment references such as
// $HOME are expanded.
func Parse(label, line string) (*Command, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	argv, err := parser.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse %s command: %w", label, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%s: %w", label, ErrEmptyCommand)
	}
	return &Command{label: label, argv: argv}, nil
}

func (c *Command) String() string { return c.argv[0] }

// Run starts the command, writes request to its stdin and hands every
// non-blank stdout line to onLine. An onLine error stops the process.
func (c *Command) Run(ctx context.Context, request any, onLine func([]byte) error) error {
	input, err := json.Marshal(request)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s command: %w", c.label, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	var lineErr error
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if lineErr = onLine(line); lineErr != nil {
			cancel()
			break
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()
	switch {
	case lineErr != nil:
		return lineErr
	case ctx.Err() != nil && waitErr != nil:
		return ctx.Err()
	case waitErr != nil:
		return fmt.Errorf("%s command failed: %w: %s", c.label, waitErr, bytes.TrimSpace(stderr.Bytes()))
	}
	return scanErr
}
