package roles

import "github.com/activos-fijos/activos/internal/rbac"

// Row pairs a role with its merged permission table for display.
type Row struct {
	Role  rbac.Role
	Table rbac.Table
}

// Cell is one checkbox of the permission matrix.
type Cell struct {
	Subject string
	Action  string
	Granted bool
}

// Value is the form value encoding the cell.
func (c Cell) Value() string {
	return c.Subject + ":" + c.Action
}

// Matrix lays the catalog out subject by subject with the grants of table
// ticked. Grants outside the catalog are appended so they survive a save.
func Matrix(table rbac.Table) [][]Cell {
	known := make(map[string]map[string]struct{}, len(rbac.Catalog))
	rows := make([][]Cell, 0, len(rbac.Catalog))
	for _, p := range rbac.Catalog {
		known[p.Subject] = make(map[string]struct{}, len(p.Actions))
		row := make([]Cell, 0, len(p.Actions))
		for _, a := range p.Actions {
			known[p.Subject][a] = struct{}{}
			row = append(row, Cell{Subject: p.Subject, Action: a, Granted: table.Can(p.Subject, a)})
		}
		rows = append(rows, row)
	}
	for _, subject := range table.Subjects() {
		var extra []Cell
		for _, a := range table.Actions(subject) {
			if _, ok := known[subject][a]; !ok {
				extra = append(extra, Cell{Subject: subject, Action: a, Granted: true})
			}
		}
		if len(extra) > 0 {
			rows = append(rows, extra)
		}
	}
	return rows
}
