// Package menu holds the portal navigation tree and filters it per role.
package menu

import (
	"fmt"
	"slices"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

type Icon int

const (
	IconNone Icon = iota
	IconDashboard
	IconAssessment
	IconQuestion
	IconSubject
	IconGroup
	IconUser
	IconResult
	IconSettings
)

func (i Icon) String() string {
	switch i {
	case IconNone:
		return ""
	case IconDashboard:
		return "dashboard"
	case IconAssessment:
		return "assignment"
	case IconQuestion:
		return "quiz"
	case IconSubject:
		return "menu_book"
	case IconGroup:
		return "groups"
	case IconUser:
		return "person"
	case IconResult:
		return "grading"
	case IconSettings:
		return "settings"
	default:
		return fmt.Sprintf("Icon(%d)", int(i))
	}
}

// Item is a node of the tree. Empty Roles means every role.
type Item struct {
	Label    string
	Route    string
	Icon     Icon
	Roles    []models.UserRole
	Children []Item
}

func (it Item) allows(role models.UserRole) bool {
	return len(it.Roles) == 0 || slices.Contains(it.Roles, role)
}

// Filter returns the items role may see. Items without a route whose
// children are all hidden are dropped. The input is not modified.
func Filter(role models.UserRole, items []Item) []Item {
	var out []Item
	for _, it := range items {
		if !it.allows(role) {
			continue
		}
		children := Filter(role, it.Children)
		if it.Route == "" && len(children) == 0 {
			continue
		}
		it.Children = children
		it.Roles = slices.Clone(it.Roles)
		out = append(out, it)
	}
	return out
}

var authors = []models.UserRole{models.RoleTeacher, models.RoleAdmin}

// Portal is the full navigation tree.
func Portal() []Item {
	return []Item{
		{Label: "Dashboard", Route: "/", Icon: IconDashboard},
		{Label: "Assessments", Icon: IconAssessment, Children: []Item{
			{Label: "My assessments", Route: "/assessments", Icon: IconAssessment},
			{Label: "Create assessment", Route: "/assessments/new", Icon: IconAssessment, Roles: authors},
		}},
		{Label: "Question bank", Icon: IconQuestion, Roles: authors, Children: []Item{
			{Label: "Questions", Route: "/questions", Icon: IconQuestion},
			{Label: "Categories", Route: "/categories", Icon: IconQuestion},
			{Label: "Passages", Route: "/passages", Icon: IconQuestion},
		}},
		{Label: "Results", Route: "/attempts", Icon: IconResult},
		{Label: "Administration", Icon: IconSettings, Children: []Item{
			{Label: "Subjects", Route: "/subjects", Icon: IconSubject, Roles: []models.UserRole{models.RoleAdmin}},
			{Label: "Groups", Route: "/groups", Icon: IconGroup, Roles: authors},
			{Label: "Users", Route: "/users", Icon: IconUser, Roles: authors},
		}},
	}
}
