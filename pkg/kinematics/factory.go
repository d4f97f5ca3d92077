// Factory functions for creating kinematics instances from configuration.
package kinematics

import (
	"strings"

	"bentcrank-plotter/pkg/errors"
)

// TypeLinearParallel names the straight-crank linkage. The mode is
// recognised so configs using it fail with a clear error, but its geometry
// is not implemented.
const TypeLinearParallel = "linear_parallel"

// NewFromConfig creates the kinematics instance for mode.
func NewFromConfig(mode string, cfg Config) (Kinematics, error) {
	switch normalizeType(mode) {
	case TypeBentCrank:
		s, err := NewSolver(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeLinearParallel:
		return nil, errors.KinematicsUnsupportedError(mode, "linear_parallel geometry is not implemented")
	default:
		return nil, errors.KinematicsUnsupportedError(mode, "unknown kinematics type")
	}
}

// IsSupported returns true if the given kinematic type can be built.
func IsSupported(mode string) bool {
	return normalizeType(mode) == TypeBentCrank
}

// SupportedTypes returns a list of supported kinematic types.
func SupportedTypes() []string {
	return []string{TypeBentCrank}
}

func normalizeType(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}
