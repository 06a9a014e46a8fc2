// Package mount plans and applies systemless overlay mounts for modules.
package mount

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/dohr-michael/rootd/internal/modules"
)

// ExtendedPartitions are the partition roots considered beyond /system,
// including vendor-specific ones.
var ExtendedPartitions = []string{
	"vendor", "product", "system_ext", "odm",
	"odm_dlkm", "vendor_dlkm", "prism", "optics",
}

// Plan is the set of overlay lower layers collected from the module store.
type Plan struct {
	System     []string            // lower layers for /system
	Partitions map[string][]string // partition name -> lower layers
}

// Empty reports whether the plan would mount nothing.
func (p *Plan) Empty() bool {
	if len(p.System) > 0 {
		return false
	}
	for _, dirs := range p.Partitions {
		if len(dirs) > 0 {
			return false
		}
	}
	return true
}

// CollectLayers walks the module store and builds per-partition lower layer
// lists. Disabled, remove-flagged, and skip_mount modules contribute nothing.
// Only partitions that exist under partitionRoot are considered; for each
// module, system/<part> takes priority over a top-level <part> directory.
func CollectLayers(store *modules.Store, partitionRoot string) (*Plan, error) {
	plan := &Plan{Partitions: make(map[string][]string)}

	for _, part := range ExtendedPartitions {
		if fi, err := os.Stat(filepath.Join(partitionRoot, part)); err == nil && fi.IsDir() {
			plan.Partitions[part] = nil
		}
	}

	mods, err := store.List()
	if err != nil {
		return nil, err
	}

	for _, m := range mods {
		if m.Disabled || m.Remove || m.SkipMount {
			continue
		}

		systemDir := filepath.Join(m.Dir, "system")
		if isDir(systemDir) {
			plan.System = append(plan.System, systemDir)
		}

		for part := range plan.Partitions {
			inSystem := filepath.Join(m.Dir, "system", part)
			topLevel := filepath.Join(m.Dir, part)

			if isDir(inSystem) {
				plan.Partitions[part] = append(plan.Partitions[part], inSystem)
			}
			if isDir(topLevel) {
				plan.Partitions[part] = append(plan.Partitions[part], topLevel)
			}
		}
	}

	return plan, nil
}

// Apply mounts the plan: /system first, then each extended partition in
// a stable order.
func Apply(plan *Plan) error {
	if len(plan.System) > 0 {
		if err := Overlay("/system", plan.System, "", ""); err != nil {
			return err
		}
	}

	parts := make([]string, 0, len(plan.Partitions))
	for part := range plan.Partitions {
		parts = append(parts, part)
	}
	sort.Strings(parts)

	for _, part := range parts {
		layers := plan.Partitions[part]
		if len(layers) == 0 {
			continue
		}
		if err := Overlay("/"+part, layers, "", ""); err != nil {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
