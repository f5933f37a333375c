package config

import "github.com/terraphim/kgsearchd/internal/types"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	RolesChanged    bool
	RoleChanges     []RoleDiff // per-role diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// RoleDiff describes what changed for a single role between two configs.
type RoleDiff struct {
	Name              string
	HaystacksChanged  bool
	ThesaurusChanged  bool // KG path or remote URL changed — invalidates caches
	RelevanceChanged  bool
	Added             bool
	Removed           bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	for name, oldRole := range old.Roles {
		newRole, exists := new.Roles[name]
		if !exists {
			d.RoleChanges = append(d.RoleChanges, RoleDiff{Name: name, Removed: true})
			d.RolesChanged = true
			continue
		}
		rd := diffRole(name, oldRole, newRole)
		if rd.HaystacksChanged || rd.ThesaurusChanged || rd.RelevanceChanged {
			d.RoleChanges = append(d.RoleChanges, rd)
			d.RolesChanged = true
		}
	}

	for name := range new.Roles {
		if _, exists := old.Roles[name]; !exists {
			d.RoleChanges = append(d.RoleChanges, RoleDiff{Name: name, Added: true})
			d.RolesChanged = true
		}
	}

	return d
}

// diffRole compares two role configs with the same name.
func diffRole(name string, old, new types.Role) RoleDiff {
	rd := RoleDiff{Name: name}

	if len(old.Haystacks) != len(new.Haystacks) {
		rd.HaystacksChanged = true
	} else {
		for i := range old.Haystacks {
			if !haystacksEqual(old.Haystacks[i], new.Haystacks[i]) {
				rd.HaystacksChanged = true
				break
			}
		}
	}

	if old.TerraphimItHub != new.TerraphimItHub {
		rd.ThesaurusChanged = true
	}
	if (old.KG == nil) != (new.KG == nil) {
		rd.ThesaurusChanged = true
	} else if old.KG != nil && new.KG != nil && old.KG.Path != new.KG.Path {
		rd.ThesaurusChanged = true
	}

	if old.RelevanceFunction != new.RelevanceFunction {
		rd.RelevanceChanged = true
	}

	return rd
}

// haystacksEqual compares two haystacks field-by-field; types.Haystack holds
// a map so it is not comparable with ==.
func haystacksEqual(a, b types.Haystack) bool {
	if a.Location != b.Location || a.Service != b.Service || a.ReadOnly != b.ReadOnly {
		return false
	}
	if len(a.Extra) != len(b.Extra) {
		return false
	}
	for k, v := range a.Extra {
		if b.Extra[k] != v {
			return false
		}
	}
	return true
}
