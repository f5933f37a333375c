package config

import (
	"testing"

	"github.com/terraphim/kgsearchd/internal/types"
)

func TestDiffDetectsLogLevelChange(t *testing.T) {
	old := &Config{Server: ServerConfig{LogLevel: LogInfo}}
	new := &Config{Server: ServerConfig{LogLevel: LogDebug}}

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Fatalf("got %+v", d)
	}
}

func TestDiffDetectsRoleAddedRemovedAndThesaurusChange(t *testing.T) {
	old := &Config{Roles: map[string]types.Role{
		"a": {Name: "a", KG: &types.KnowledgeGraphLocal{Path: "/old"}},
		"b": {Name: "b", KG: &types.KnowledgeGraphLocal{Path: "/b"}},
	}}
	new := &Config{Roles: map[string]types.Role{
		"a": {Name: "a", KG: &types.KnowledgeGraphLocal{Path: "/new"}},
		"c": {Name: "c", KG: &types.KnowledgeGraphLocal{Path: "/c"}},
	}}

	d := Diff(old, new)
	if !d.RolesChanged {
		t.Fatal("want RolesChanged true")
	}

	var sawThesaurusChange, sawRemoved, sawAdded bool
	for _, rd := range d.RoleChanges {
		switch {
		case rd.Name == "a" && rd.ThesaurusChanged:
			sawThesaurusChange = true
		case rd.Name == "b" && rd.Removed:
			sawRemoved = true
		case rd.Name == "c" && rd.Added:
			sawAdded = true
		}
	}
	if !sawThesaurusChange || !sawRemoved || !sawAdded {
		t.Fatalf("missing expected diffs: %+v", d.RoleChanges)
	}
}

func TestDiffIgnoresUnchangedHaystacks(t *testing.T) {
	role := types.Role{
		Name: "a",
		KG:   &types.KnowledgeGraphLocal{Path: "/a"},
		Haystacks: []types.Haystack{
			{Location: "/docs", Service: types.ServiceRipgrep, Extra: map[string]string{"k": "v"}},
		},
	}
	old := &Config{Roles: map[string]types.Role{"a": role}}
	new := &Config{Roles: map[string]types.Role{"a": role}}

	d := Diff(old, new)
	if d.RolesChanged {
		t.Fatalf("want no change, got %+v", d)
	}
}
