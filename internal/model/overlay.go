package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// slotOverlay is the on-disk shape of an optional slots.yaml file. It lets
// operations re-order the priority ranking or reword labels and questions
// without a rebuild. Slots not named keep their built-in definition and sort
// after the overlaid ones in their original relative order.
type slotOverlay struct {
	Slots []struct {
		Name     SlotName `yaml:"name"`
		Label    string   `yaml:"label"`
		Question string   `yaml:"question"`
	} `yaml:"slots"`
}

// LoadRegistry returns the built-in registry, overlaid with the YAML file at
// path if it exists. An empty path or missing file yields the defaults.
func LoadRegistry(path string) (*SlotRegistry, error) {
	reg := DefaultRegistry()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, eris.Wrapf(err, "model: read slot overlay %s", path)
	}

	var overlay slotOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, eris.Wrapf(err, "model: parse slot overlay %s", path)
	}
	if len(overlay.Slots) == 0 {
		return reg, nil
	}

	// Reorder: overlaid slots first (in overlay order), then the rest.
	ordered := make([]SlotDefinition, 0, len(reg.Slots))
	taken := make(map[SlotName]bool, len(overlay.Slots))
	for _, o := range overlay.Slots {
		def := reg.ByName(o.Name)
		if def == nil {
			return nil, eris.Errorf("model: slot overlay names unknown slot %q", o.Name)
		}
		d := *def
		if o.Label != "" {
			d.Label = o.Label
		}
		if o.Question != "" {
			d.Question = o.Question
		}
		ordered = append(ordered, d)
		taken[o.Name] = true
	}
	for _, d := range reg.Slots {
		if !taken[d.Name] {
			ordered = append(ordered, d)
		}
	}

	return NewSlotRegistry(ordered), nil
}
