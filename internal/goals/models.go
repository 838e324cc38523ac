package goals

import "time"

// Goal is a statement attached to a long term.
type Goal struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	LongTermID int64     `db:"long_term_id" json:"long_term_id"`
	Statement  string    `db:"statement" json:"statement"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// GoalWithCategoryIDs is a goal plus the ids of its linked categories.
type GoalWithCategoryIDs struct {
	Goal
	CategoryIDs []int64 `json:"category_ids"`
}

// GoalCategoryLink joins a goal to a category.
type GoalCategoryLink struct {
	ID         int64 `db:"id" json:"id"`
	GoalID     int64 `db:"goal_id" json:"goal_id"`
	CategoryID int64 `db:"category_id" json:"category_id"`
}

// LongTerm owns goals and cycles.
type LongTerm struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateInput is the payload for creating a goal.
type CreateInput struct {
	LongTermID  int64   `json:"longTermId"`
	Statement   string  `json:"statement"`
	CategoryIDs []int64 `json:"categoryIds,omitempty"`
}
