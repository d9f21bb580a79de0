package policy

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pyladiescon/confops/internal/domain"
	"gopkg.in/yaml.v3"
)

// RoleMapping maps ticket item types and variations to chat roles. It is loaded once at
// startup and never mutated afterwards, so it is safe for concurrent readers.
//
// Entries may name a role through the Roles alias table or give a raw role id:
//
//	roles:
//	  participants: "1308511459087036457"
//	  speakers:     "1308511602099982356"
//	items:
//	  "609703": [participants]
//	variations:
//	  "77": [speakers, "1308511700011111111"]
type RoleMapping struct {
	items      map[string]domain.RoleSet
	variations map[string]domain.RoleSet
	aliases    map[string]domain.RoleID
}

type roleMappingFile struct {
	Roles      map[string]string   `yaml:"roles"`
	Items      map[string][]string `yaml:"items"`
	Variations map[string][]string `yaml:"variations"`
}

// LoadRoleMapping reads a YAML role mapping from path.
func LoadRoleMapping(path string) (*RoleMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role mapping: %w", err)
	}
	m, err := ParseRoleMapping(data)
	if err != nil {
		return nil, fmt.Errorf("role mapping %s: %w", path, err)
	}
	return m, nil
}

// ParseRoleMapping decodes a YAML role mapping. Unknown top-level keys are rejected.
func ParseRoleMapping(data []byte) (*RoleMapping, error) {
	var f roleMappingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	m := &RoleMapping{
		items:      make(map[string]domain.RoleSet, len(f.Items)),
		variations: make(map[string]domain.RoleSet, len(f.Variations)),
		aliases:    make(map[string]domain.RoleID, len(f.Roles)),
	}
	for name, id := range f.Roles {
		if err := domain.ValidateSnowflake(id); err != nil {
			return nil, fmt.Errorf("role alias %q: %w", name, err)
		}
		m.aliases[name] = domain.RoleID(id)
	}

	var err error
	if m.items, err = m.resolveTable("items", f.Items); err != nil {
		return nil, err
	}
	if m.variations, err = m.resolveTable("variations", f.Variations); err != nil {
		return nil, err
	}
	return m, nil
}

// NewRoleMapping builds a mapping directly from role id tables.
func NewRoleMapping(items, variations map[string][]domain.RoleID) *RoleMapping {
	m := &RoleMapping{
		items:      make(map[string]domain.RoleSet, len(items)),
		variations: make(map[string]domain.RoleSet, len(variations)),
		aliases:    map[string]domain.RoleID{},
	}
	for k, ids := range items {
		m.items[k] = domain.NewRoleSet(ids...)
	}
	for k, ids := range variations {
		m.variations[k] = domain.NewRoleSet(ids...)
	}
	return m
}

func (m *RoleMapping) resolveTable(table string, raw map[string][]string) (map[string]domain.RoleSet, error) {
	out := make(map[string]domain.RoleSet, len(raw))
	for key, refs := range raw {
		set := domain.NewRoleSet()
		for _, ref := range refs {
			id, err := m.resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("%s[%s]: %w", table, key, err)
			}
			set.Add(id)
		}
		out[key] = set
	}
	return out, nil
}

func (m *RoleMapping) resolve(ref string) (domain.RoleID, error) {
	if id, ok := m.aliases[ref]; ok {
		return id, nil
	}
	if err := domain.ValidateSnowflake(ref); err != nil {
		return "", fmt.Errorf("unknown role %q", ref)
	}
	return domain.RoleID(ref), nil
}

// RolesFor returns the union of the roles mapped to the ticket's item type and
// variation. The result is empty when neither key has an entry.
func (m *RoleMapping) RolesFor(t domain.Ticket) domain.RoleSet {
	roles := domain.NewRoleSet()
	roles.Union(m.items[t.ItemType])
	if t.HasVariation() {
		roles.Union(m.variations[t.Variation])
	}
	return roles
}

// Role looks up a role alias.
func (m *RoleMapping) Role(name string) (domain.RoleID, bool) {
	id, ok := m.aliases[name]
	return id, ok
}
