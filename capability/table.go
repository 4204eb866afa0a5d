package capability

import (
	"log/slog"

	"github.com/conveyor-ci/conveyor/config"
	"github.com/conveyor-ci/conveyor/pipeline"
	"github.com/conveyor-ci/conveyor/types"
)

// Table builds the capability dispatch table for the closed stage-kind set.
// Gate and notify kinds are handled by the engine itself and have no entry.
func Table(settings config.Settings, logger *slog.Logger) map[types.StageKind]pipeline.Capability {
	if logger == nil {
		logger = slog.Default()
	}
	return map[types.StageKind]pipeline.Capability{
		types.KindCheckout:       &Checkout{Logger: logger},
		types.KindStaticAnalysis: &StaticAnalysis{Settings: settings.Sonar, Logger: logger},
		types.KindDependencyScan: &DependencyScan{Logger: logger},
		types.KindImageScan:      &ImageScan{Logger: logger},
		types.KindBuild:          &ImageBuild{Settings: settings, Logger: logger},
		types.KindDeploy:         &Deploy{Settings: settings.Kube, Logger: logger},
	}
}
