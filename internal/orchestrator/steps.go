package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/lectern/internal/faults"
	"github.com/JaimeStill/lectern/internal/records"
)

// StepName identifies a step in the sequence.
type StepName string

const (
	StepExtract   StepName = "extract"
	StepFormat    StepName = "format"
	StepTranslate StepName = "translate"
	StepSpeech    StepName = "speech"
)

// remainingSteps returns the step that follows completed for params, or false
// when the workflow is done.
func remainingSteps(params records.Parameters, completed StepName) (StepName, bool) {
	switch completed {
	case StepExtract:
		return StepFormat, true
	case StepFormat:
		if params.Translate {
			return StepTranslate, true
		}
		if params.Speech {
			return StepSpeech, true
		}
	case StepTranslate:
		if params.Speech {
			return StepSpeech, true
		}
	}
	return "", false
}

// stepDef binds a step to the status it runs under and the status emitted
// when it finishes with further steps remaining. Extraction has no
// completion status; its output is recorded on the next step's status.
type stepDef struct {
	running  records.Status
	complete records.Status
	handle   Step
}

// StepContext is the accumulated state a step handler receives.
type StepContext struct {
	ExecutionID string             `json:"executionId"`
	UserID      string             `json:"userId"`
	WorkflowID  string             `json:"workflowId"`
	Parameters  records.Parameters `json:"parameters"`
	Artifacts   map[string]string  `json:"artifacts"`
}

func (sc StepContext) merge(fragment map[string]string) StepContext {
	artifacts := make(map[string]string, len(sc.Artifacts)+len(fragment))
	for k, v := range sc.Artifacts {
		artifacts[k] = v
	}
	for k, v := range fragment {
		artifacts[k] = v
	}
	sc.Artifacts = artifacts
	return sc
}

// EncodeResumeToken serializes sc into the opaque token stored with a suspended job.
func EncodeResumeToken(sc StepContext) (string, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeResumeToken parses a token produced by EncodeResumeToken.
func DecodeResumeToken(token string) (StepContext, error) {
	var sc StepContext
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return sc, faults.Processing("decode resume token: %v", err)
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, faults.Processing("decode resume token: %v", err)
	}
	if sc.ExecutionID == "" || sc.UserID == "" || sc.WorkflowID == "" {
		return sc, faults.Processing("resume token is missing its workflow identity")
	}
	return sc, nil
}

// OutcomeKind tags a StepOutcome.
type OutcomeKind int

const (
	OutcomeContinue OutcomeKind = iota
	OutcomeSuspend
	OutcomeFail
)

// StepOutcome is the tagged result of a step handler.
type StepOutcome struct {
	Kind     OutcomeKind
	Fragment map[string]string
	JobID    string
	Err      error
}

// Continue reports success with the artifacts the step produced.
func Continue(fragment map[string]string) StepOutcome {
	return StepOutcome{Kind: OutcomeContinue, Fragment: fragment}
}

// Suspend reports that the step is waiting on external job jobID.
func Suspend(jobID string) StepOutcome {
	return StepOutcome{Kind: OutcomeSuspend, JobID: jobID}
}

// Fail reports a step failure.
func Fail(err error) StepOutcome {
	return StepOutcome{Kind: OutcomeFail, Err: err}
}

// Step is a step handler.
type Step func(ctx context.Context, sc StepContext) StepOutcome

func (o StepOutcome) String() string {
	switch o.Kind {
	case OutcomeContinue:
		return fmt.Sprintf("continue(%d artifacts)", len(o.Fragment))
	case OutcomeSuspend:
		return "suspend(" + o.JobID + ")"
	default:
		return fmt.Sprintf("fail(%v)", o.Err)
	}
}
