package git

import (
	"context"
	"strings"
)

// ConfigGet reads one config key. A missing key is not an error; it
// reads as the empty string.
func (c *Client) ConfigGet(ctx context.Context, key string, local bool) (string, error) {
	args := []string{"config"}
	if local {
		args = append(args, "--local")
	}
	args = append(args, "--get", key)

	out, stderr, code, err := c.runExit(ctx, args...)
	if err != nil {
		return "", err
	}
	switch code {
	case 0:
		return strings.TrimSpace(out), nil
	case 1:
		// Unset key.
		return "", nil
	default:
		return "", &CommandError{Args: args, ExitCode: code, Stderr: stderr}
	}
}

// ConfigSet writes one config key.
func (c *Client) ConfigSet(ctx context.Context, key, value string, local bool) error {
	args := []string{"config"}
	if local {
		args = append(args, "--local")
	}
	args = append(args, key, value)
	_, err := c.run(ctx, args...)
	return err
}
