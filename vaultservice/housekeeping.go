package vaultservice

import (
	"context"
	"time"

	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/scheduler"
	"github.com/Internet-of-People/mercury-rust-sub000/threads"
)

// persistTask flushes the vault and all three profile repositories to their backing storage. It
// implements scheduler.PeriodicTaskInterface.
type persistTask struct {
	s *Service
}

func (p *persistTask) Run(ctx context.Context) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if p.s.vault != nil {
		if err := p.s.vault.Save(ctx, p.s.vaultStore, p.s.vaultKey); err != nil {
			logger.Warn(ctx, "Periodic vault persistence failed: %s", err)
		}
	}
	if err := p.s.local.Save(ctx); err != nil {
		logger.Warn(ctx, "Periodic local persistence failed: %s", err)
	}
	if err := p.s.base.Save(ctx); err != nil {
		logger.Warn(ctx, "Periodic base persistence failed: %s", err)
	}
	if err := p.s.remote.Save(ctx); err != nil {
		logger.Warn(ctx, "Periodic remote persistence failed: %s", err)
	}
}

// StartHousekeeping launches a background scheduler that flushes the vault and every profile
// repository to their backing storage once per interval, so an unclean shutdown loses at most one
// interval's worth of edits. The returned thread stops once ctx is canceled.
func (s *Service) StartHousekeeping(ctx context.Context, interval time.Duration) *threads.Thread {
	sch := &scheduler.Scheduler{}
	job := scheduler.NewPeriodicTask("vaultservice-persist", &persistTask{s: s}, interval)
	if err := sch.ScheduleJob(ctx, job); err != nil {
		logger.Warn(ctx, "Failed to schedule housekeeping job: %s", err)
	}

	thread := threads.NewThreadWithoutStop("vaultservice-housekeeping", sch.Run)
	thread.Start(ctx)

	go func() {
		<-ctx.Done()
		sch.Stop(context.Background())
	}()

	return thread
}
