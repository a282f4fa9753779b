package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrRefNotFound is returned when a ref names no branch, tag or commit.
var ErrRefNotFound = errors.New("ref not found")

// DefaultClient is the default git client implementation
type DefaultClient struct {
	Timeout time.Duration
}

// NewClient creates a new git client
func NewClient() *DefaultClient {
	return &DefaultClient{
		Timeout: 5 * time.Minute,
	}
}

// Clone clones a git repository to the specified path.
// The clone is full so that any branch, tag or commit can be checked out.
func (c *DefaultClient) Clone(ctx context.Context, url, destPath string) error {
	_, errMsg, err := c.run(ctx, "clone", "--quiet", url, destPath)
	if err != nil {
		if isAuthError(errMsg) {
			return &AuthError{URL: url, Message: errMsg}
		}
		return fmt.Errorf("git clone failed: %s", errOutput(errMsg, err))
	}

	return nil
}

// Checkout switches repoPath to ref. A local branch is checked out directly,
// a remote branch gets a local branch of the same name tracking it, and a tag
// or commit is checked out detached. ErrRefNotFound is returned when none of
// these match.
func (c *DefaultClient) Checkout(ctx context.Context, repoPath, ref string) error {
	args := []string{"-C", repoPath, "checkout", "--quiet"}

	switch {
	case c.verify(ctx, repoPath, "refs/heads/"+ref):
		args = append(args, ref)
	case c.verify(ctx, repoPath, "refs/remotes/origin/"+ref):
		args = append(args, "--track", "-b", ref, "origin/"+ref)
	case c.verify(ctx, repoPath, ref+"^{commit}"):
		args = append(args, "--detach", ref)
	default:
		return fmt.Errorf("git checkout %s: %w", ref, ErrRefNotFound)
	}

	_, errMsg, err := c.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("git checkout %s failed: %s", ref, errOutput(errMsg, err))
	}

	return nil
}

// GetCurrentCommit returns the current commit SHA
func (c *DefaultClient) GetCurrentCommit(ctx context.Context, repoPath string) (string, error) {
	stdout, _, err := c.run(ctx, "-C", repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current commit: %w", err)
	}

	return strings.TrimSpace(stdout), nil
}

// CurrentBranch returns the checked out branch, or "HEAD" when detached
func (c *DefaultClient) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	stdout, errMsg, err := c.run(ctx, "-C", repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %s", errOutput(errMsg, err))
	}

	return strings.TrimSpace(stdout), nil
}

func (c *DefaultClient) verify(ctx context.Context, repoPath, rev string) bool {
	_, _, err := c.run(ctx, "-C", repoPath, "rev-parse", "--verify", "--quiet", rev)
	return err == nil
}

func (c *DefaultClient) run(ctx context.Context, args ...string) (string, string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return stdout.String(), stderr.String(), err
}

func errOutput(stderr string, err error) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	return err.Error()
}

// AuthError represents a git authentication error
type AuthError struct {
	URL     string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for '%s': %s", e.URL, e.Message)
}

// isAuthError checks if the error message indicates an authentication failure
func isAuthError(msg string) bool {
	authPatterns := []string{
		"Authentication failed",
		"Permission denied",
		"could not read Username",
		"403",
		"401",
	}

	for _, pattern := range authPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
