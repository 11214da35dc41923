package models

import (
	"encoding/json"
	"fmt"
)

// WorkflowStatus is the lifecycle state of a remote workflow.
type WorkflowStatus string

const (
	WorkflowCreated   WorkflowStatus = "created"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowSucceeded WorkflowStatus = "succeeded"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Terminal reports whether s is succeeded or failed.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowSucceeded || s == WorkflowFailed
}

func (s WorkflowStatus) valid() bool {
	switch s {
	case WorkflowCreated, WorkflowRunning, WorkflowSucceeded, WorkflowFailed:
		return true
	}
	return false
}

// WorkflowState is one observation of a workflow.
type WorkflowState struct {
	ID          string
	Type        string
	Status      WorkflowStatus
	Description string
	// Reason explains a failure. It falls back to final_task.reason.
	Reason string
	Result json.RawMessage
}

// ParseWorkflow parses {id, type, status, description?, result?, reason?}.
func ParseWorkflow(raw []byte) (WorkflowState, error) {
	d, err := decode("workflow", raw)
	if err != nil {
		return WorkflowState{}, err
	}
	var w WorkflowState
	if w.ID, err = d.requiredString("id"); err != nil {
		return WorkflowState{}, err
	}
	if w.Type, err = d.optionalString("type"); err != nil {
		return WorkflowState{}, err
	}
	status, err := d.requiredString("status")
	if err != nil {
		return WorkflowState{}, err
	}
	w.Status = WorkflowStatus(status)
	if !w.Status.valid() {
		return WorkflowState{}, d.fail("status", fmt.Errorf("%w: %q", ErrInvalidValue, status))
	}
	if w.Description, err = d.optionalString("description"); err != nil {
		return WorkflowState{}, err
	}
	if w.Reason, err = d.optionalString("reason"); err != nil {
		return WorkflowState{}, err
	}
	if w.Reason == "" {
		if w.Reason, err = d.optionalString("final_task.reason"); err != nil {
			return WorkflowState{}, err
		}
	}
	if v, ok := d.lookup("result"); ok {
		b, err := json.Marshal(v)
		if err != nil {
			return WorkflowState{}, d.fail("result", err)
		}
		w.Result = b
	}
	return w, nil
}
