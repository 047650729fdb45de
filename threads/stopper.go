// Package threads wraps goroutine lifecycles (start/stop/wait) for the long-running loops this
// module spawns: vaultservice.Service's housekeeping loop and homeprotocol.Client's read loop
// both run as a threads.Thread rather than a bare goroutine, so a node shuts
// down by stopping a Stopper, not by leaking goroutines.
package threads

import (
	"context"
)

type Stopper interface {
	Stop(context.Context)
}

type StopCombiner []Stopper

func (s *StopCombiner) Add(stopper Stopper) {
	*s = append(*s, stopper)
}

func (s StopCombiner) Stop(ctx context.Context) {
	for _, stopper := range s {
		stopper.Stop(ctx)
	}
}
