package reference

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Filter reshapes a feed body before it is decoded.
type Filter interface {
	Apply(ctx context.Context, program string, input []byte) ([]byte, error)
}

// JQ runs programs through the jq executable.
type JQ struct {
	Path string // defaults to "jq" on PATH
}

// Apply pipes input through `jq -c program` and returns its stdout.
func (j JQ) Apply(ctx context.Context, program string, input []byte) ([]byte, error) {
	path := j.Path
	if path == "" {
		path = "jq"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-c", program)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("jq %q: %s", program, msg)
	}
	return stdout.Bytes(), nil
}
