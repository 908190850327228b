package registry

import "omnisearch/internal/domain"

var defaultVolumes = map[string]domain.DataVolume{
	"slack":      domain.VolumeLarge,
	"teams":      domain.VolumeLarge,
	"gmail":      domain.VolumeLarge,
	"outlook":    domain.VolumeLarge,
	"jira":       domain.VolumeMedium,
	"linear":     domain.VolumeMedium,
	"github":     domain.VolumeMedium,
	"gitlab":     domain.VolumeMedium,
	"confluence": domain.VolumeMedium,
}

// VolumeFor returns the explicit tier of spec, else the default for its id.
func VolumeFor(spec domain.ToolSpec) domain.DataVolume {
	if spec.Volume != "" {
		return spec.Volume
	}
	if volume, ok := defaultVolumes[spec.ID]; ok {
		return volume
	}
	return domain.VolumeSmall
}
