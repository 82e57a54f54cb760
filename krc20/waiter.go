package krc20

import (
	"context"
	"time"

	"github.com/bitfsorg/libkaspa-go/tx"
)

// DefaultCommitDelay is how long FixedDelay waits after the commit broadcast.
const DefaultCommitDelay = 2 * time.Second

// CommitWaiter runs between the commit broadcast and building the reveal.
type CommitWaiter interface {
	WaitForCommit(ctx context.Context, commitID tx.Hash) error
}

// FixedDelay waits a fixed time for the commit to propagate. It does not
// check that the commit was accepted; under congestion the reveal may be
// rejected and the transfer must be resumed later.
type FixedDelay time.Duration

// WaitForCommit sleeps for d or until ctx is done.
func (d FixedDelay) WaitForCommit(ctx context.Context, _ tx.Hash) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CommitWaiterFunc adapts a function to CommitWaiter.
type CommitWaiterFunc func(ctx context.Context, commitID tx.Hash) error

// WaitForCommit calls f.
func (f CommitWaiterFunc) WaitForCommit(ctx context.Context, commitID tx.Hash) error {
	return f(ctx, commitID)
}
