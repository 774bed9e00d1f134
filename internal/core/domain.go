package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	RoleAssets      Role = "assets"
	RoleLiabilities Role = "liabilities"
)

type (
	// Role tags a Section with its side of the net worth subtraction.
	Role string

	Category struct {
		Name  string `json:"Name"`
		Value Amount `json:"Value"`
	}

	Group struct {
		Name       string     `json:"Name"`
		Categories []Category `json:"Categories"`
		TotalValue Amount     `json:"TotalValue"`
	}

	Section struct {
		Name       string  `json:"Name"`
		Groups     []Group `json:"Groups"`
		TotalValue Amount  `json:"TotalValue"`
		Role       Role    `json:"Role,omitempty"`
	}
)

var (
	ErrValidationRejected = errors.New("validation rejected")
	ErrEmptyName          = fmt.Errorf("%w: name cannot be empty", ErrValidationRejected)
	ErrDuplicateName      = fmt.Errorf("%w: name already exists", ErrValidationRejected)
)

// IsValid reports whether r is empty or one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case "", RoleAssets, RoleLiabilities:
		return true
	default:
		return false
	}
}

// ValidateNewName checks that name can be added next to existing siblings.
// Comparison is exact and case-sensitive; a whitespace-only name is empty.
func ValidateNewName(existing []string, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	for _, n := range existing {
		if n == name {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return nil
}

// GroupNames returns the names of the section's groups in order.
func (s Section) GroupNames() []string {
	names := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		names = append(names, g.Name)
	}
	return names
}

// CategoryNames returns the names of the group's categories in order.
func (g Group) CategoryNames() []string {
	names := make([]string, 0, len(g.Categories))
	for _, c := range g.Categories {
		names = append(names, c.Name)
	}
	return names
}

// Clone returns a deep copy. Nil slices come back empty so the copy always
// encodes as JSON arrays.
func (s Section) Clone() Section {
	out := Section{Name: s.Name, TotalValue: s.TotalValue, Role: s.Role}
	out.Groups = make([]Group, len(s.Groups))
	for i, g := range s.Groups {
		out.Groups[i] = g.Clone()
	}
	return out
}

func (g Group) Clone() Group {
	out := Group{Name: g.Name, TotalValue: g.TotalValue}
	out.Categories = make([]Category, len(g.Categories))
	copy(out.Categories, g.Categories)
	return out
}

// CloneSections deep-copies a whole collection.
func CloneSections(in []Section) []Section {
	out := make([]Section, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// FindSection returns the index of the section called name, or -1.
func FindSection(sections []Section, name string) int {
	for i, s := range sections {
		if s.Name == name {
			return i
		}
	}
	return -1
}
