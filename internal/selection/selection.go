// Package selection turns loaded modules plus user choices into the ordered,
// deduplicated list of modules to assemble.
package selection

import (
	"errors"
	"fmt"

	"github.com/guardkit/guardkit/internal/modules"
	"github.com/guardkit/guardkit/internal/prompt"
)

// ErrUnknownModule is returned when an explicit id list names a module that
// does not exist in the repository.
var ErrUnknownModule = errors.New("unknown module")

// Mode selects how the module set is chosen.
type Mode int

const (
	// ModeAll selects every standalone module and the lowest-priority
	// member of each exclusive group.
	ModeAll Mode = iota
	// ModeList selects exactly the ids named on the command line.
	ModeList
	// ModeInteractive drives selection through a Prompter.
	ModeInteractive
	// ModeSavedConfig replays the ids from a previous run's configuration.
	ModeSavedConfig
)

// Input carries everything Select needs. Modules must already be in
// (priority, id) order, as returned by modules.Load.
type Input struct {
	Modules []modules.Module
	ModelID string
	Mode    Mode

	// IDs is the explicit id list for ModeList.
	IDs []string

	// SavedIDs is the previous run's selection for ModeSavedConfig.
	SavedIDs []string

	// Prompter drives ModeInteractive.
	Prompter prompt.Prompter

	// Seed, when non-nil, overrides default_enabled as the initial state of
	// interactive toggles (used when the user reuses a previous run but
	// still wants to edit the selection).
	Seed []string
}

// Result is the outcome of a selection run.
type Result struct {
	// Modules is deduplicated and in (priority, id) order regardless of
	// selection path, so assembly order is always priority-stable.
	Modules []modules.Module

	// ForcedAuto lists ids added because their auto-include model matched.
	ForcedAuto []string

	// ForcedMandatory lists ids re-added because their mandatory model
	// matched after the user (or mode) had excluded them.
	ForcedMandatory []string
}

// IDs returns the selected module ids in result order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Modules))
	for i, m := range r.Modules {
		ids[i] = m.ID
	}
	return ids
}

// Select produces the module set for the given mode. The result honors two
// invariants for every mode: at most one member per exclusive group, and any
// module whose mandatory model matches ModelID is present.
func Select(in Input) (Result, error) {
	byID := make(map[string]modules.Module, len(in.Modules))
	for _, m := range in.Modules {
		byID[m.ID] = m
	}

	groups, standalone := partition(in.Modules)

	var chosen map[string]bool
	var err error
	switch in.Mode {
	case ModeAll:
		chosen = selectAll(groups, standalone)
	case ModeList:
		chosen, err = selectList(in.IDs, byID)
	case ModeSavedConfig:
		chosen = selectSaved(in.SavedIDs, byID)
	case ModeInteractive:
		chosen, err = selectInteractive(in, groups, standalone)
	default:
		err = fmt.Errorf("unknown selection mode %d", in.Mode)
	}
	if err != nil {
		return Result{}, err
	}

	result := Result{}
	applyModelForcing(in, byID, chosen, &result)

	// Filtering the already-sorted input both deduplicates and restores
	// (priority, id) order.
	for _, m := range in.Modules {
		if chosen[m.ID] {
			result.Modules = append(result.Modules, m)
		}
	}
	return result, nil
}

// group is one exclusive group with members in (priority, id) order.
type group struct {
	key     string
	members []modules.Module
}

// partition splits modules into exclusive groups (in first-seen order) and
// standalones.
func partition(mods []modules.Module) ([]group, []modules.Module) {
	var groups []group
	index := map[string]int{}
	var standalone []modules.Module

	for _, m := range mods {
		if m.ExclusiveGroup == "" {
			standalone = append(standalone, m)
			continue
		}
		i, ok := index[m.ExclusiveGroup]
		if !ok {
			i = len(groups)
			index[m.ExclusiveGroup] = i
			groups = append(groups, group{key: m.ExclusiveGroup})
		}
		groups[i].members = append(groups[i].members, m)
	}
	return groups, standalone
}

func selectAll(groups []group, standalone []modules.Module) map[string]bool {
	chosen := map[string]bool{}
	for _, m := range standalone {
		chosen[m.ID] = true
	}
	// Members are in (priority, id) order, so the first is the pick.
	for _, g := range groups {
		chosen[g.members[0].ID] = true
	}
	return chosen
}

// selectList picks exactly the named modules. Naming two members of the same
// exclusive group is a user error resolved deterministically: the last one
// named wins.
func selectList(ids []string, byID map[string]modules.Module) (map[string]bool, error) {
	chosen := map[string]bool{}
	groupPick := map[string]string{}

	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownModule, id)
		}
		if m.ExclusiveGroup != "" {
			if prev, ok := groupPick[m.ExclusiveGroup]; ok {
				delete(chosen, prev)
			}
			groupPick[m.ExclusiveGroup] = id
		}
		chosen[id] = true
	}
	return chosen, nil
}

// selectSaved replays a saved selection, silently dropping ids that no
// longer resolve (modules may have been removed since the config was saved).
// Stored defaults are advisory only: group exclusivity is re-enforced here,
// last listed member winning.
func selectSaved(ids []string, byID map[string]modules.Module) map[string]bool {
	chosen := map[string]bool{}
	groupPick := map[string]string{}

	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			continue
		}
		if m.ExclusiveGroup != "" {
			if prev, ok := groupPick[m.ExclusiveGroup]; ok {
				delete(chosen, prev)
			}
			groupPick[m.ExclusiveGroup] = id
		}
		chosen[id] = true
	}
	return chosen
}

func selectInteractive(in Input, groups []group, standalone []modules.Module) (map[string]bool, error) {
	chosen := map[string]bool{}

	seeded := func(m modules.Module) bool {
		if in.Seed == nil {
			return m.DefaultEnabled
		}
		for _, id := range in.Seed {
			if id == m.ID {
				return true
			}
		}
		return false
	}

	if len(standalone) > 0 {
		options := make([]prompt.Option, len(standalone))
		defaults := make([]bool, len(standalone))
		for i, m := range standalone {
			options[i] = prompt.Option{Label: m.Name, Detail: m.Description}
			defaults[i] = seeded(m)
		}
		selected, err := in.Prompter.AskManyOf("Select modules (ordered by priority)", options, defaults)
		if err != nil {
			return nil, err
		}
		for i, on := range selected {
			if on {
				chosen[standalone[i].ID] = true
			}
		}
	}

	for _, g := range groups {
		options := make([]prompt.Option, len(g.members))
		for i, m := range g.members {
			options[i] = prompt.Option{Label: m.Name, Detail: m.Description}
		}
		// Seed with the default-enabled member, falling back to the first.
		defIndex := 0
		for i, m := range g.members {
			if m.DefaultEnabled {
				defIndex = i
				break
			}
		}
		pick, err := in.Prompter.AskOneOf(fmt.Sprintf("Choose one (%s)", g.key), options, defIndex)
		if err != nil {
			return nil, err
		}
		chosen[g.members[pick].ID] = true
	}
	return chosen, nil
}

// applyModelForcing adds modules whose auto-include or mandatory model
// matches the selected model. A forced module displaces an already-chosen
// sibling from the same exclusive group rather than joining it.
func applyModelForcing(in Input, byID map[string]modules.Module, chosen map[string]bool, result *Result) {
	if in.ModelID == "" {
		return
	}
	for _, m := range in.Modules {
		mandatory := m.MandatoryForModel == in.ModelID
		auto := m.AutoIncludeForModel == in.ModelID
		if !mandatory && !auto {
			continue
		}
		if chosen[m.ID] {
			continue
		}
		displaceSibling(in.Modules, m, chosen)
		chosen[m.ID] = true
		if mandatory {
			result.ForcedMandatory = append(result.ForcedMandatory, m.ID)
		} else {
			result.ForcedAuto = append(result.ForcedAuto, m.ID)
		}
	}
}

func displaceSibling(mods []modules.Module, forced modules.Module, chosen map[string]bool) {
	if forced.ExclusiveGroup == "" {
		return
	}
	for _, m := range mods {
		if m.ID != forced.ID && m.ExclusiveGroup == forced.ExclusiveGroup {
			delete(chosen, m.ID)
		}
	}
}
