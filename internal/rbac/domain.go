package rbac

import (
	"sort"
	"strings"
)

// Well-known subjects guarded by the dashboard.
const (
	SubjectDashboard    = "dashboard"
	SubjectActivos      = "activos"
	SubjectEntregas     = "entregas"
	SubjectDevoluciones = "devoluciones"
	SubjectContables    = "contables"
	SubjectRoles        = "roles"
	SubjectUsuarios     = "usuarios"
	SubjectBitacora     = "bitacora"
)

// Well-known actions.
const (
	ActionCreate   = "create"
	ActionRead     = "read"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionPrint    = "print"
	ActionCalcular = "calcular"
)

// Permission grants a set of actions on one subject.
type Permission struct {
	Subject string   `json:"subject"`
	Actions []string `json:"action"`
}

// Role is the client-side copy of a backend role.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// Table maps a subject to the set of actions granted on it.
type Table map[string]map[string]struct{}

// Can reports whether action is granted on subject.
func (t Table) Can(subject, action string) bool {
	actions, ok := t[normalize(subject)]
	if !ok {
		return false
	}
	_, ok = actions[normalize(action)]
	return ok
}

// CanAny reports whether at least one of the actions is granted on subject.
func (t Table) CanAny(subject string, actions ...string) bool {
	for _, action := range actions {
		if t.Can(subject, action) {
			return true
		}
	}
	return false
}

// Subjects returns the subjects present in the table, sorted.
func (t Table) Subjects() []string {
	subjects := make([]string, 0, len(t))
	for subject := range t {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Actions returns the actions granted on subject, sorted.
func (t Table) Actions(subject string) []string {
	set := t[normalize(subject)]
	actions := make([]string, 0, len(set))
	for action := range set {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

// Permissions flattens the table back into one Permission per subject.
func (t Table) Permissions() []Permission {
	perms := make([]Permission, 0, len(t))
	for _, subject := range t.Subjects() {
		perms = append(perms, Permission{Subject: subject, Actions: t.Actions(subject)})
	}
	return perms
}

// normalize trims surrounding space. Case is significant.
func normalize(s string) string {
	return strings.TrimSpace(s)
}

// Catalog lists every subject and the actions the backend recognises on it,
// in display order. Role forms offer exactly these checkboxes.
var Catalog = []Permission{
	{Subject: SubjectDashboard, Actions: []string{ActionRead}},
	{Subject: SubjectActivos, Actions: []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionPrint}},
	{Subject: SubjectEntregas, Actions: []string{ActionRead, ActionCreate}},
	{Subject: SubjectDevoluciones, Actions: []string{ActionRead, ActionCreate}},
	{Subject: SubjectContables, Actions: []string{ActionCalcular}},
	{Subject: SubjectRoles, Actions: []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete}},
	{Subject: SubjectUsuarios, Actions: []string{ActionRead}},
	{Subject: SubjectBitacora, Actions: []string{ActionRead, ActionPrint}},
}
