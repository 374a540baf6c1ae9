// Package model defines the newsletter submission value types: content items,
// submission forms and the closed enumerations they are built from.
package model

import "fmt"

type Section string

const (
	SectionNews    Section = "News"
	SectionProject Section = "Project"
	SectionPeople  Section = "People"
)

// Sections lists every section in display order.
func Sections() []Section {
	return []Section{SectionNews, SectionProject, SectionPeople}
}

func ParseSection(s string) (Section, error) {
	for _, section := range Sections() {
		if string(section) == s {
			return section, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", s)
}

func (s Section) Valid() bool {
	_, err := ParseSection(string(s))
	return err == nil
}
