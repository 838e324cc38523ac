package orm

import (
	"fmt"
	"strings"
)

// Parent declares the table that owns rows of another table and the column
// holding the owner's id.
type Parent struct {
	Table string
	Key   string
}

// OwnerChain is the static child → parent table map used to scope queries to
// the root owner. It is immutable once built.
type OwnerChain struct {
	root    string
	parents map[string]Parent
}

// NewOwnerChain validates and freezes a parent map. Every walk must end at a
// table without a parent; a cycle is a configuration error.
func NewOwnerChain(root string, parents map[string]Parent) (*OwnerChain, error) {
	if root == "" {
		return nil, fmt.Errorf("owner chain: root table is required")
	}
	if _, ok := parents[root]; ok {
		return nil, fmt.Errorf("owner chain: root table %s cannot declare a parent", root)
	}

	frozen := make(map[string]Parent, len(parents))
	for table, parent := range parents {
		if parent.Table == "" || parent.Key == "" {
			return nil, fmt.Errorf("owner chain: table %s has an incomplete parent declaration", table)
		}
		frozen[table] = parent
	}

	chain := &OwnerChain{root: root, parents: frozen}
	for table := range frozen {
		if _, err := chain.walk(table); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// Root returns the root owner table.
func (c *OwnerChain) Root() string {
	return c.root
}

// Parent returns the declared parent of table.
func (c *OwnerChain) Parent(table string) (Parent, bool) {
	p, ok := c.parents[table]
	return p, ok
}

// Rooted reports whether table's chain ends at the root owner table.
func (c *OwnerChain) Rooted(table string) bool {
	return c.Resolve(table).Rooted
}

// walk returns the tables visited from table up to its terminal ancestor.
func (c *OwnerChain) walk(table string) ([]string, error) {
	path := []string{table}
	seen := map[string]bool{table: true}

	current := table
	for {
		parent, ok := c.parents[current]
		if !ok {
			return path, nil
		}
		if seen[parent.Table] {
			return nil, fmt.Errorf("owner chain: cycle detected: %s -> %s", strings.Join(path, " -> "), parent.Table)
		}
		seen[parent.Table] = true
		path = append(path, parent.Table)
		current = parent.Table
	}
}

// OwnerScope is the join path from a table to its terminal owner.
type OwnerScope struct {
	Joins []join
	// Rooted is true when the path ends at the root owner table; only then
	// does a query get an owner predicate.
	Rooted bool
	// OwnerColumn is the qualified root id column, e.g. users.id.
	OwnerColumn string
}

// Resolve builds the joins needed to reach the owner of table. One JOIN is
// emitted per hop: JOIN parent ON parent.id = child.key.
func (c *OwnerChain) Resolve(table string) OwnerScope {
	var scope OwnerScope

	current := table
	for {
		parent, ok := c.parents[current]
		if !ok {
			break
		}
		scope.Joins = append(scope.Joins, join{
			Type:      Join,
			Table:     parent.Table,
			Condition: fmt.Sprintf("%s.id = %s.%s", parent.Table, current, parent.Key),
		})
		current = parent.Table
	}

	if current == c.root {
		scope.Rooted = true
		scope.OwnerColumn = c.root + ".id"
	}
	return scope
}
