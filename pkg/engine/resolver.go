package engine

import (
	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/models"
)

// ErrInconsistentWorkflow indicates no step is eligible to run but the
// workflow is not complete. This is a template authoring bug and is
// surfaced, never papered over.
var ErrInconsistentWorkflow = errors.New("inconsistent workflow: no eligible step but workflow incomplete")

// NextEligibleStep selects the step to run next. A step already
// IN_PROGRESS is returned as-is; otherwise the first PENDING step (lowest
// order) whose dependencies are all COMPLETE wins. Returns (nil, nil) when
// every step is COMPLETE.
func NextEligibleStep(steps []*models.StepInstance) (*models.StepInstance, error) {
	for _, step := range steps {
		if step.Status == models.StepStatusInProgress {
			return step, nil
		}
	}

	complete := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.Status == models.StepStatusComplete {
			complete[step.Name] = true
		}
	}

	for _, step := range steps {
		if step.Status != models.StepStatusPending {
			continue
		}
		eligible := true
		for _, dep := range step.Dependencies {
			if !complete[dep] {
				eligible = false
				break
			}
		}
		if eligible {
			return step, nil
		}
	}

	if AllComplete(steps) {
		return nil, nil
	}
	return nil, ErrInconsistentWorkflow
}

// AllComplete reports whether every step is COMPLETE
func AllComplete(steps []*models.StepInstance) bool {
	for _, step := range steps {
		if step.Status != models.StepStatusComplete {
			return false
		}
	}
	return true
}

// StepByName finds a step by its dependency-reference key
func StepByName(steps []*models.StepInstance, name string) *models.StepInstance {
	for _, step := range steps {
		if step.Name == name {
			return step
		}
	}
	return nil
}
