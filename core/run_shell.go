package core

import (
	"fmt"
	"time"
)

// jobRunShell wraps one firing on a worker goroutine: listener fan-out,
// veto handling, execution with panic containment, and the completion
// handshake back to the store.
type jobRunShell struct {
	scheduler *Scheduler
	bundle    *TriggerFiredBundle
	ctx       *JobExecutionContext
}

func newJobRunShell(s *Scheduler, bundle *TriggerFiredBundle) (*jobRunShell, error) {
	job, err := s.factory().NewJob(bundle)
	if err != nil {
		return nil, err
	}
	shell := &jobRunShell{scheduler: s, bundle: bundle}
	shell.ctx = newJobExecutionContext(s, bundle, job)
	return shell, nil
}

func (r *jobRunShell) run() {
	s := r.scheduler
	trigger := r.bundle.Trigger
	detail := r.ctx.JobDetail

	for {
		s.listeners.notifyTriggerFired(trigger, r.ctx)

		if s.listeners.notifyAndVeto(trigger, r.ctx) {
			s.listeners.notifyJobExecutionVetoed(r.ctx)
			s.store.TriggeredJobComplete(trigger, detail, InstructionSetTriggerComplete)
			return
		}

		s.listeners.notifyJobToBeExecuted(r.ctx)

		start := time.Now()
		jobErr := r.executeContained()
		r.ctx.JobRunTime = time.Since(start)

		if jobErr != nil {
			s.logger.Errorf("job %q (fired by trigger %q) failed: %v", detail.Key, trigger.Key(), jobErr)
		} else {
			s.logger.Debugf("job %q completed in %s", detail.Key, r.ctx.JobRunTime)
		}

		s.listeners.notifyJobWasExecuted(r.ctx, jobErr)

		instruction := trigger.ExecutionCompleteInstruction(r.ctx, jobErr)
		if instruction == InstructionReExecuteJob {
			r.ctx.RefireCount++
			continue
		}

		s.listeners.notifyTriggerComplete(trigger, r.ctx, instruction)
		s.store.TriggeredJobComplete(trigger, detail, instruction)
		return
	}
}

// executeContained runs the job, converting a panic into an error so one
// bad job never takes down a worker.
func (r *jobRunShell) executeContained() (jobErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			jobErr = &JobExecutionError{Cause: fmt.Errorf("job panicked: %v", rec)}
		}
	}()
	return r.ctx.Job.Execute(r.ctx)
}
