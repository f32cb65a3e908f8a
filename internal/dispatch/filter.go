package dispatch

import (
	"strings"

	"labbroker/pkg/model"
	"labbroker/pkg/sanitizer"
)

// Filter narrows the catalog in tiers: an exact (case-insensitive) name
// when one is given, otherwise resources carrying every requested equipment
// tag, otherwise everything. A tier that is selected but matches nothing
// yields nothing; there is no fallback to the next tier.
func Filter(resources []*model.Resource, labName string, equipment []string) []*model.Resource {
	labName = sanitizer.TrimAndNormalize(labName)
	if labName != "" {
		var out []*model.Resource
		for _, r := range resources {
			if strings.EqualFold(r.Name, labName) {
				out = append(out, r)
			}
		}
		return out
	}

	tags := sanitizer.Tags(equipment)
	if len(tags) > 0 {
		var out []*model.Resource
		for _, r := range resources {
			if hasAllEquipment(r, tags) {
				out = append(out, r)
			}
		}
		return out
	}

	return resources
}

// hasAllEquipment matches each tag as a substring of any equipment entry or
// of the description.
func hasAllEquipment(r *model.Resource, tags []string) bool {
	description := strings.ToLower(r.Description)
	for _, tag := range tags {
		found := strings.Contains(description, tag)
		for _, e := range r.Equipment {
			if found {
				break
			}
			found = strings.Contains(strings.ToLower(e), tag)
		}
		if !found {
			return false
		}
	}
	return true
}
