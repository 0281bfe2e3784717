/*************************************************************************
 * Copyright 2018 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package procutil holds small process-lifecycle helpers shared by the
// collector's binaries: graceful-shutdown signal handling.
package procutil

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WaitForQuit blocks until SIGINT or SIGTERM is received, then cancels the
// returned context so every long-running component can unwind.
func WaitForQuit(parent context.Context) (ctx context.Context, cancel context.CancelFunc) {
	ctx, cancel = context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
