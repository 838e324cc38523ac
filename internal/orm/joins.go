package orm

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// JoinType represents different types of SQL joins
type JoinType string

const (
	Join      JoinType = "JOIN"
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// join represents a SQL join clause (internal use only)
type join struct {
	Type      JoinType
	Table     string
	Condition string
}

func (j join) apply(builder squirrel.SelectBuilder) squirrel.SelectBuilder {
	clause := fmt.Sprintf("%s ON %s", j.Table, j.Condition)
	switch j.Type {
	case InnerJoin:
		return builder.InnerJoin(clause)
	case LeftJoin:
		return builder.LeftJoin(clause)
	default:
		return builder.Join(clause)
	}
}

// JoinPair equates a column of the left table with a column of the right
// table in an ON clause.
type JoinPair struct {
	Left  string
	Right string
}

// On builds a JoinPair.
func On(left, right string) JoinPair {
	return JoinPair{Left: left, Right: right}
}

// renderJoinPairs produces "(from.a = to.b AND from.c = to.d)".
func renderJoinPairs(from, to Table, pairs []JoinPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s = %s", from.Qualify(p.Left), to.Qualify(p.Right))
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}
