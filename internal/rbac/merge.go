package rbac

// Merge folds permission grants into a single table. Each subject appears
// once and holds the union of every action listed for it. A grant with no
// actions still creates its subject with an empty action set.
func Merge(perms []Permission) Table {
	table := make(Table, len(perms))
	for _, p := range perms {
		subject := normalize(p.Subject)
		if subject == "" {
			continue
		}
		actions, ok := table[subject]
		if !ok {
			actions = make(map[string]struct{}, len(p.Actions))
			table[subject] = actions
		}
		for _, a := range p.Actions {
			a = normalize(a)
			if a == "" {
				continue
			}
			actions[a] = struct{}{}
		}
	}
	return table
}

// FromRoles merges the permissions of every role.
func FromRoles(roles []Role) Table {
	var perms []Permission
	for _, role := range roles {
		perms = append(perms, role.Permissions...)
	}
	return Merge(perms)
}
