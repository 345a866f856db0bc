// Package orchestrator sequences the workflow steps: extract, format, then
// optionally translate and synthesize speech. Long-running extraction jobs
// suspend the run through the callback bridge; no goroutine waits on them.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/lectern/internal/callbacks"
	"github.com/JaimeStill/lectern/internal/executions"
	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/records"
)

// RunInput is the payload an execution is started with. The reconciler
// recovers the owning workflow from it.
type RunInput struct {
	UserID     string             `json:"userId"`
	WorkflowID string             `json:"workflowId"`
	InputRef   string             `json:"inputRef"`
	Parameters records.Parameters `json:"parameters"`
}

// Orchestrator drives workflow runs.
type Orchestrator struct {
	rt       *Runtime
	settings Settings
	runner   *Runner
	logger   *slog.Logger
	table    map[StepName]stepDef
}

// New creates an Orchestrator dispatching runs on runner.
func New(rt *Runtime, settings Settings, runner *Runner) *Orchestrator {
	o := &Orchestrator{
		rt:       rt,
		settings: settings,
		runner:   runner,
		logger:   rt.Logger.With("system", "orchestrator"),
	}
	o.table = o.steps()
	return o
}

// Launch starts an execution for an existing STARTING record and dispatches
// its run. It returns once the execution is recorded.
func (o *Orchestrator) Launch(ctx context.Context, in RunInput) (*executions.Execution, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode run input: %w", err)
	}

	exec, err := o.rt.Executions.Start(ctx, in.UserID, in.WorkflowID, payload, o.settings.ExecutionTimeout)
	if err != nil {
		return nil, faults.Storage("start execution", err)
	}

	sc := StepContext{
		ExecutionID: exec.ID,
		UserID:      in.UserID,
		WorkflowID:  in.WorkflowID,
		Parameters:  in.Parameters,
		Artifacts:   map[string]string{records.ArtifactOriginalFile: in.InputRef},
	}

	o.runner.Dispatch(func(ctx context.Context) {
		o.drive(ctx, sc, StepExtract, nil)
	})

	return exec, nil
}

// Resume continues a run suspended on an extraction job. It implements
// callbacks.Resumer. Runs whose execution has stopped are not continued.
func (o *Orchestrator) Resume(ctx context.Context, token callbacks.Token, outcome callbacks.Outcome) error {
	sc, err := DecodeResumeToken(token.ResumeToken)
	if err != nil {
		o.logger.Error("undecodable resume token", "job_id", token.ExternalJobID, "error", err)
		o.fail(ctx, StepContext{UserID: token.Backref.UserID, WorkflowID: token.Backref.WorkflowID}, faults.KindProcessing, err.Error())
		return err
	}

	exec, err := o.rt.Executions.Get(ctx, sc.ExecutionID)
	if err != nil {
		return faults.Storage("load execution", err)
	}
	if exec.Status != executions.StatusRunning {
		return &executions.NotRunningError{ID: exec.ID, Status: exec.Status}
	}

	if !outcome.Succeeded {
		o.fail(ctx, sc, faults.KindExternalService, outcome.Cause)
		return nil
	}
	if outcome.OutputRef == "" {
		o.fail(ctx, sc, faults.KindProcessing, "extraction succeeded without an output reference")
		return nil
	}

	fragment := map[string]string{records.ArtifactExtractedText: outcome.OutputRef}
	o.runner.Dispatch(func(ctx context.Context) {
		if next, patch, ok := o.advance(ctx, sc.merge(fragment), StepExtract, fragment); ok {
			o.drive(ctx, sc.merge(fragment), next, patch)
		}
	})

	return nil
}

// drive runs steps from step onward until the run finishes, fails, or suspends.
// patch carries artifacts from the previous step that are recorded with step's status.
func (o *Orchestrator) drive(ctx context.Context, sc StepContext, step StepName, patch map[string]string) {
	for {
		def := o.table[step]

		if err := o.append(ctx, sc, def.running, records.Patch{Artifacts: patch}); err != nil {
			return
		}

		outcome := def.handle(ctx, sc)
		o.logger.Debug("step finished", "workflow_id", sc.WorkflowID, "step", step, "outcome", outcome)

		switch outcome.Kind {
		case OutcomeFail:
			o.fail(ctx, sc, faults.Kind(outcome.Err), outcome.Err.Error())
			return
		case OutcomeSuspend:
			o.suspend(ctx, sc, outcome.JobID)
			return
		}

		sc = sc.merge(outcome.Fragment)
		next, nextPatch, ok := o.advance(ctx, sc, step, outcome.Fragment)
		if !ok {
			return
		}
		step, patch = next, nextPatch
	}
}

// advance records the end of completed and returns the next step with the
// artifacts still to be recorded. It reports false when the run is over.
func (o *Orchestrator) advance(
	ctx context.Context,
	sc StepContext,
	completed StepName,
	fragment map[string]string,
) (StepName, map[string]string, bool) {
	next, more := remainingSteps(sc.Parameters, completed)
	if !more {
		if err := o.append(ctx, sc, records.StatusSucceeded, records.Patch{Artifacts: fragment}); err == nil {
			o.complete(ctx, sc, executions.StatusSucceeded)
			o.logger.Info("workflow succeeded", "user_id", sc.UserID, "workflow_id", sc.WorkflowID)
		}
		return "", nil, false
	}

	def := o.table[completed]
	if def.complete == "" {
		return next, fragment, true
	}

	if err := o.append(ctx, sc, def.complete, records.Patch{Artifacts: fragment}); err != nil {
		return "", nil, false
	}
	return next, nil, true
}

func (o *Orchestrator) suspend(ctx context.Context, sc StepContext, jobID string) {
	token, err := EncodeResumeToken(sc)
	if err != nil {
		o.fail(ctx, sc, faults.KindProcessing, fmt.Sprintf("encode resume token: %v", err))
		return
	}

	backref := callbacks.Backref{
		UserID:     sc.UserID,
		WorkflowID: sc.WorkflowID,
		InputRef:   sc.Artifacts[records.ArtifactOriginalFile],
	}

	if err := o.rt.Suspender.PersistToken(ctx, jobID, token, backref, o.settings.TokenTTL); err != nil {
		o.fail(ctx, sc, faults.Kind(err), err.Error())
		return
	}

	o.logger.Info("workflow suspended", "workflow_id", sc.WorkflowID, "job_id", jobID)
}

// append records status. A terminal record means another actor already
// finished the workflow, so the run stops without further writes.
func (o *Orchestrator) append(ctx context.Context, sc StepContext, status records.Status, patch records.Patch) error {
	err := o.rt.Records.AppendStatus(ctx, sc.UserID, sc.WorkflowID, status, patch)
	if err == nil {
		return nil
	}

	var stateErr *records.StateError
	if errors.As(err, &stateErr) {
		o.logger.Info(
			"workflow already terminal, stopping run",
			"workflow_id", sc.WorkflowID,
			"current", stateErr.Current,
			"attempted", status,
		)
		return err
	}

	o.logger.Error("status append failed", "workflow_id", sc.WorkflowID, "status", status, "error", err)
	if status != records.StatusFailed {
		o.fail(ctx, sc, faults.KindStorage, err.Error())
	}
	return err
}

func (o *Orchestrator) fail(ctx context.Context, sc StepContext, kind, cause string) {
	if kind == "" {
		kind = faults.KindUnknown
	}
	o.logger.Warn("workflow failed", "workflow_id", sc.WorkflowID, "error_kind", kind, "cause", cause)

	if sc.UserID == "" || sc.WorkflowID == "" {
		return
	}
	if err := o.append(ctx, sc, records.StatusFailed, records.Patch{
		Error: &records.ErrorInfo{Error: kind, Cause: cause},
	}); err != nil {
		return
	}
	o.complete(ctx, sc, executions.StatusFailed)
}

func (o *Orchestrator) complete(ctx context.Context, sc StepContext, status executions.Status) {
	if sc.ExecutionID == "" {
		return
	}
	if err := o.rt.Executions.Complete(ctx, sc.ExecutionID, status); err != nil {
		o.logger.Info("execution not completed", "execution_id", sc.ExecutionID, "status", status, "error", err)
	}
}
