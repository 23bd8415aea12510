package config

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Project is one named backup unit: an ordered list of volumes backed up and
// pruned together under a single snapshot tag.
type Project struct {
	Name    string
	Volumes []string
}

// ProjectList preserves the document order of the projects mapping. The order
// in the config file is the processing order of the run, so a plain Go map
// (or any loader that round-trips through one) would lose a guaranteed part
// of the contract.
type ProjectList []Project

// Tag-safe names: they end up in snapshot tags and in comma-separated tag
// filters, and volume names become path components under the volume root.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func (l *ProjectList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("projects must be a mapping of name to volume list (line %d)", node.Line)
	}

	seen := map[string]bool{}
	out := make(ProjectList, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var name string
		if err := keyNode.Decode(&name); err != nil {
			return fmt.Errorf("invalid project name (line %d): %w", keyNode.Line, err)
		}
		if !nameRe.MatchString(name) {
			return fmt.Errorf("invalid project name %q (line %d)", name, keyNode.Line)
		}
		if seen[name] {
			return fmt.Errorf("duplicate project %q (line %d)", name, keyNode.Line)
		}
		seen[name] = true

		var volumes []string
		if valueNode.Tag != "!!null" {
			if err := valueNode.Decode(&volumes); err != nil {
				return fmt.Errorf("project %q: volumes must be a list (line %d): %w", name, valueNode.Line, err)
			}
		}
		for _, v := range volumes {
			if !nameRe.MatchString(v) {
				return fmt.Errorf("project %q: invalid volume name %q (line %d)", name, v, valueNode.Line)
			}
		}

		out = append(out, Project{Name: name, Volumes: volumes})
	}

	*l = out
	return nil
}

// Names returns the project names in configuration order.
func (l ProjectList) Names() []string {
	names := make([]string, len(l))
	for i, p := range l {
		names[i] = p.Name
	}
	return names
}
