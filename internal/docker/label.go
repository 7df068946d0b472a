package docker

import (
	"fmt"
	"strings"
	"time"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// Label keys put on every container the docker runtime creates. They are
// the only way to find containers left behind when a run is interrupted
// before its deferred removal.
const (
	// LabelPrefix namespaces all scoped-installer labels.
	LabelPrefix = "scoped-installer."

	// LabelManagedBy identifies containers created by scoped-installer.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelEnvName stores the Environment Name the container serves.
	LabelEnvName = LabelPrefix + "env-name"

	// LabelStep stores the pipeline stage ("activate" or "install").
	LabelStep = LabelPrefix + "step"

	// LabelCreatedAt stores the RFC3339 creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "scoped-installer"

// BuildLabels returns the label set for a container running step for envName.
func BuildLabels(envName string, step model.StepName, createdAt time.Time) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelEnvName:   envName,
		LabelStep:      step.String(),
		LabelCreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reads the scoped-installer labels of a container back into
// a ContainerInfo. ID, name and status are left for the caller to fill.
func ParseLabels(labels map[string]string) (*model.ContainerInfo, error) {
	var missing []string
	for _, key := range []string{LabelManagedBy, LabelEnvName, LabelStep, LabelCreatedAt} {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	step := model.StepName(labels[LabelStep])
	if !step.IsValid() {
		return nil, fmt.Errorf("invalid label %s: unknown step %q", LabelStep, labels[LabelStep])
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.ContainerInfo{
		EnvName:   labels[LabelEnvName],
		Step:      step,
		CreatedAt: createdAt,
	}, nil
}

// FilterLabels returns the label filter that selects containers managed by
// scoped-installer when listing containers through the Docker API.
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
