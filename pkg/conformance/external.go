package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/time/rate"
)

// maxWireBuffer is the minimum stdout buffer the conformance wire contract
// guarantees an external verifier; a case or detail payload larger than
// this is a protocol violation, not a verification failure.
const maxWireBuffer = 10 << 20 // 10 MiB

// ExternalVerifier drives a conformance case through a subprocess
// implementing the stdin/stdout wire contract: a JSON VerifierInput on
// stdin, a JSON {ok, code?, detail?} on stdout, exit code mirroring ok.
type ExternalVerifier struct {
	Command []string // argv[0] plus arguments
	Timeout time.Duration

	limiter *rate.Limiter
}

// NewExternalVerifier builds a driver that additionally rate-limits how
// often the subprocess is invoked, so a slow or misbehaving external
// verifier cannot starve the rest of a conformance run.
func NewExternalVerifier(command []string, timeout time.Duration, rps float64, burst int) *ExternalVerifier {
	return &ExternalVerifier{
		Command: command,
		Timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type externalResponse struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (e *ExternalVerifier) Verify(ctx context.Context, in VerifierInput) (Outcome, string, error) {
	if len(e.Command) == 0 {
		return "", "", fmt.Errorf("conformance: external verifier has no command configured")
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", "", fmt.Errorf("conformance: rate limiter: %w", err)
		}
	}

	deadline := e.Timeout
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	stdin, err := json.Marshal(in)
	if err != nil {
		return "", "", fmt.Errorf("conformance: marshal verifier input: %w", err)
	}

	cmd := exec.CommandContext(runCtx, e.Command[0], e.Command[1:]...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, remaining: maxWireBuffer}
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", "", fmt.Errorf("conformance: external verifier timed out after %s", deadline)
	}

	var resp externalResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return "", "", fmt.Errorf("conformance: external verifier produced malformed stdout: %w (stderr: %s)", err, stderr.String())
	}

	exitOK := runErr == nil
	if resp.OK != exitOK {
		return "", "", fmt.Errorf("conformance: external verifier exit status disagrees with stdout ok field")
	}

	if resp.OK {
		return okOutcome, "", nil
	}
	return errOutcome(resp.Code), resp.Detail, nil
}

// limitedWriter caps how many bytes it will accept before erroring, so a
// runaway subprocess cannot exhaust memory even though the wire contract
// promises a generous buffer.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > l.remaining {
		return 0, fmt.Errorf("conformance: external verifier exceeded %d byte output limit", maxWireBuffer)
	}
	n, err := l.w.Write(p)
	l.remaining -= n
	return n, err
}
