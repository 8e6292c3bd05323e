package rbac

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEmpty(t *testing.T) {
	table := Merge(nil)
	assert.Empty(t, table)
	assert.Empty(t, Merge([]Permission{}))
}

func TestMergeUnionsSameSubject(t *testing.T) {
	table := Merge([]Permission{
		{Subject: "roles", Actions: []string{"read"}},
		{Subject: "roles", Actions: []string{"read", "create"}},
	})
	require.Len(t, table, 1)
	assert.Equal(t, []string{"create", "read"}, table.Actions("roles"))
}

func TestMergeDeduplicatesWithinEntry(t *testing.T) {
	table := Merge([]Permission{{Subject: "activos", Actions: []string{"print", "print", " read ", "read"}}})
	assert.Equal(t, []string{"print", "read"}, table.Actions("activos"))
}

func TestMergeKeepsCase(t *testing.T) {
	table := Merge([]Permission{{Subject: " Activos", Actions: []string{"readAll", "read"}}})
	assert.Equal(t, []string{"Activos"}, table.Subjects())
	assert.Equal(t, []string{"read", "readAll"}, table.Actions("Activos"))
	assert.True(t, table.Can("Activos", "readAll"))
	assert.False(t, table.Can("activos", "readall"))
}

func TestMergeEmptyActionsKeepsSubject(t *testing.T) {
	table := Merge([]Permission{{Subject: "bitacora", Actions: nil}})
	require.Contains(t, table, "bitacora")
	assert.Empty(t, table.Actions("bitacora"))
	assert.False(t, table.Can("bitacora", ActionRead))
	assert.Equal(t, []string{"bitacora"}, table.Subjects())
}

func TestMergeOrderIndependent(t *testing.T) {
	perms := []Permission{
		{Subject: "roles", Actions: []string{"read"}},
		{Subject: "activos", Actions: []string{"create", "read"}},
		{Subject: "roles", Actions: []string{"update"}},
		{Subject: "contables", Actions: []string{"calcular"}},
		{Subject: "activos", Actions: []string{"delete", "read"}},
		{Subject: "entregas", Actions: []string{}},
	}
	expected := Merge(perms)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]Permission(nil), perms...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, expected, Merge(shuffled))
	}
}

func TestMergeMatchesUnionPerSubject(t *testing.T) {
	perms := []Permission{
		{Subject: "a", Actions: []string{"x", "y"}},
		{Subject: "b", Actions: []string{"z"}},
		{Subject: "a", Actions: []string{"y", "w"}},
	}
	want := map[string]map[string]bool{}
	for _, p := range perms {
		if want[p.Subject] == nil {
			want[p.Subject] = map[string]bool{}
		}
		for _, a := range p.Actions {
			want[p.Subject][a] = true
		}
	}

	table := Merge(perms)
	require.Len(t, table, len(want))
	for subject, actions := range want {
		assert.Len(t, table[subject], len(actions), subject)
		for action := range actions {
			assert.True(t, table.Can(subject, action), "%s:%s", subject, action)
		}
	}
}

func TestFromRoles(t *testing.T) {
	roles := []Role{
		{ID: 1, Name: "Jefe", Permissions: []Permission{{Subject: "activos", Actions: []string{"read", "create"}}}},
		{ID: 2, Name: "Contador", Permissions: []Permission{{Subject: "activos", Actions: []string{"read"}}, {Subject: "contables", Actions: []string{"calcular"}}}},
	}
	table := FromRoles(roles)
	assert.True(t, table.Can("activos", "create"))
	assert.True(t, table.Can(" contables", "calcular"))
	assert.False(t, table.Can("roles", "read"))
	assert.True(t, table.CanAny("activos", "delete", "read"))
	assert.Empty(t, FromRoles(nil))
}

func TestTablePermissionsRoundTrip(t *testing.T) {
	table := Merge([]Permission{{Subject: "roles", Actions: []string{"update", "read"}}, {Subject: "activos", Actions: []string{"read"}}})
	assert.Equal(t, []Permission{
		{Subject: "activos", Actions: []string{"read"}},
		{Subject: "roles", Actions: []string{"read", "update"}},
	}, table.Permissions())
}
