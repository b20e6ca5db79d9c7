package domain

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileTransfer copies one file's bytes to a destination path. It is the
// narrow seam through which the actual byte moving happens.
type FileTransfer interface {
	Copy(ctx context.Context, src, dst string) (int64, error)
}

// LocalTransfer writes into the local destination tree, creating parent
// directories as needed.
type LocalTransfer struct{}

func (LocalTransfer) Copy(ctx context.Context, src, dst string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, errors.Wrapf(err, "unable to create directory for %q", dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to open %q", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to create %q", dst)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, errors.Wrapf(err, "unable to copy %q", src)
	}

	if err := out.Close(); err != nil {
		return n, errors.Wrapf(err, "unable to finish writing %q", dst)
	}

	return n, nil
}

// CopyExecutor performs transfers with bounded retry. Per-attempt failures
// are reported but only exhaustion of attempts is fatal for a file.
type CopyExecutor struct {
	logger   logrus.FieldLogger
	transfer FileTransfer
	policy   RetryPolicy
}

func NewCopyExecutor(logger logrus.FieldLogger, transfer FileTransfer, policy RetryPolicy) *CopyExecutor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	return &CopyExecutor{
		logger:   logger,
		transfer: transfer,
		policy:   policy,
	}
}

// Copy attempts the transfer up to MaxAttempts times with a fixed delay
// between attempts.
func (e *CopyExecutor) Copy(ctx context.Context, src, dst string) (int64, error) {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(e.policy.Delay):
			}
		}

		n, err := e.transfer.Copy(ctx, src, dst)
		if err == nil {
			return n, nil
		}

		lastErr = err

		e.logger.WithError(err).WithFields(logrus.Fields{
			"path":         src,
			"attempt":      attempt,
			"max_attempts": e.policy.MaxAttempts,
		}).Warn("Transfer attempt failed")
	}

	return 0, errors.Wrapf(lastErr, "transfer failed after %d attempts", e.policy.MaxAttempts)
}
