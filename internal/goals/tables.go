package goals

import (
	"fmt"
	"sort"

	"github.com/eleven-am/empire/internal/orm"
)

// Table descriptors for everything the owner chain knows about.
var (
	Users              = orm.NewTable("users", "email", "created_at")
	LongTerms          = orm.NewTable("long_terms", "user_id", "title", "created_at", "updated_at")
	ShortTerms         = orm.NewTable("short_terms", "user_id", "title", "created_at", "updated_at")
	Categories         = orm.NewTable("categories", "user_id", "name", "created_at")
	Cycles             = orm.NewTable("cycles", "long_term_id", "name", "starts_on", "ends_on")
	CycleCategories    = orm.NewTable("cycle_categories", "cycle_id", "name")
	CycleSubcategories = orm.NewTable("cycle_subcategories", "cycle_id", "cycle_category_id", "name")
	CycleContents      = orm.NewTable("cycle_contents", "cycle_id", "body", "created_at")
	Goals              = orm.NewTable("goals", "user_id", "long_term_id", "statement", "created_at", "updated_at")
	GoalCategoryLinks  = orm.NewTable("goal_category_links", "goal_id", "category_id")
)

func ownerParents() map[string]orm.Parent {
	return map[string]orm.Parent{
		LongTerms.Name:          {Table: Users.Name, Key: "user_id"},
		ShortTerms.Name:         {Table: Users.Name, Key: "user_id"},
		Categories.Name:         {Table: Users.Name, Key: "user_id"},
		Cycles.Name:             {Table: LongTerms.Name, Key: "long_term_id"},
		CycleCategories.Name:    {Table: Cycles.Name, Key: "cycle_id"},
		CycleSubcategories.Name: {Table: Cycles.Name, Key: "cycle_id"},
		CycleContents.Name:      {Table: Cycles.Name, Key: "cycle_id"},
		Goals.Name:              {Table: LongTerms.Name, Key: "long_term_id"},
		GoalCategoryLinks.Name:  {Table: Goals.Name, Key: "goal_id"},
	}
}

// buildOwnerChain builds the chain and requires every declared table to reach
// users, so a misspelt parent cannot silently drop the owner predicate.
func buildOwnerChain(parents map[string]orm.Parent) (*orm.OwnerChain, error) {
	chain, err := orm.NewOwnerChain(Users.Name, parents)
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(parents))
	for table := range parents {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if !chain.Rooted(table) {
			return nil, fmt.Errorf("owner chain: %s does not reach %s", table, Users.Name)
		}
	}
	return chain, nil
}

// DefaultOwnerChain links every owned table back to users. It panics when the
// declaration is invalid.
func DefaultOwnerChain() *orm.OwnerChain {
	chain, err := buildOwnerChain(ownerParents())
	if err != nil {
		panic(err)
	}
	return chain
}
