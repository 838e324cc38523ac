package goals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/eleven-am/empire/internal/logger"
	"github.com/eleven-am/empire/internal/orm"
)

const (
	// MaxStatementLength is measured in characters after trimming.
	MaxStatementLength = 280
	// DefaultGoalCap is the number of goals a user may keep per long term.
	DefaultGoalCap = 10
)

// Options tunes the service.
type Options struct {
	// Cap overrides DefaultGoalCap when positive.
	Cap int
	// Transactional wraps create and link in a single transaction. A
	// conflict then also discards the goal and any links already written.
	Transactional bool
	Logger        logger.Logger
}

// Service implements goal and category-link operations on behalf of an
// authenticated user. Every call re-checks ownership.
type Service struct {
	store *orm.Store
	opts  Options
	log   logger.Logger
}

// NewService creates a goal service on store.
func NewService(store *orm.Store, opts Options) *Service {
	if opts.Cap <= 0 {
		opts.Cap = DefaultGoalCap
	}
	log := opts.Logger
	if log == nil {
		log = logger.Goals()
	}
	return &Service{store: store, opts: opts, log: log}
}

func goalRepo(store *orm.Store) *orm.Repository[Goal] {
	return orm.NewRepository[Goal](store, Goals)
}

func linkRepo(store *orm.Store) *orm.Repository[GoalCategoryLink] {
	return orm.NewRepository[GoalCategoryLink](store, GoalCategoryLinks)
}

func longTermRepo(store *orm.Store) *orm.Repository[LongTerm] {
	return orm.NewRepository[LongTerm](store, LongTerms)
}

// run executes fn on the store, inside a transaction when configured.
func (s *Service) run(ctx context.Context, fn func(*orm.Store) error) error {
	if s.opts.Transactional {
		return s.store.WithTransaction(ctx, fn)
	}
	return fn(s.store)
}

func validateStatement(statement string) (string, error) {
	trimmed := strings.TrimSpace(statement)
	n := utf8.RuneCountInString(trimmed)
	if n < 1 || n > MaxStatementLength {
		return "", invalid(MsgInvalidStatement)
	}
	return trimmed, nil
}

func hasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

func (s *Service) ensureLongTerm(ctx context.Context, store *orm.Store, uid, longTermID int64) error {
	rows, err := longTermRepo(store).GetByID(ctx, longTermID, uid)
	if err != nil {
		return fmt.Errorf("check long term ownership: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ensureGoal(ctx context.Context, store *orm.Store, uid, goalID int64) (*Goal, error) {
	rows, err := goalRepo(store).GetByID(ctx, goalID, uid)
	if err != nil {
		return nil, fmt.Errorf("check goal ownership: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// List returns the caller's goals under a long term, newest update first,
// each carrying its linked category ids.
func (s *Service) List(ctx context.Context, uid, longTermID int64) ([]GoalWithCategoryIDs, error) {
	if err := s.ensureLongTerm(ctx, s.store, uid, longTermID); err != nil {
		return nil, err
	}

	goals, err := goalRepo(s.store).GetWithCondition(ctx, orm.Conditions{
		"long_term_id": longTermID,
		"user_id":      uid,
	})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	if len(goals) == 0 {
		return []GoalWithCategoryIDs{}, nil
	}

	ids := make([]int64, len(goals))
	for i, g := range goals {
		ids[i] = g.ID
	}
	links, err := linkRepo(s.store).GetWithCondition(ctx, orm.Conditions{"goal_id": ids})
	if err != nil {
		return nil, fmt.Errorf("list goal links: %w", err)
	}

	byGoal := make(map[int64][]int64, len(goals))
	for _, l := range links {
		byGoal[l.GoalID] = append(byGoal[l.GoalID], l.CategoryID)
	}

	sort.SliceStable(goals, func(i, j int) bool {
		if !goals[i].UpdatedAt.Equal(goals[j].UpdatedAt) {
			return goals[i].UpdatedAt.After(goals[j].UpdatedAt)
		}
		return goals[i].ID > goals[j].ID
	})

	result := make([]GoalWithCategoryIDs, len(goals))
	for i, g := range goals {
		categoryIDs := byGoal[g.ID]
		if categoryIDs == nil {
			categoryIDs = []int64{}
		}
		result[i] = GoalWithCategoryIDs{Goal: g, CategoryIDs: categoryIDs}
	}
	return result, nil
}

// Create adds a goal under a long term and links the given categories.
// Duplicate category ids are rejected before any store access, so such a
// payload creates no goal.
// Without a transaction a link conflict leaves the goal in place, and the
// goal is returned alongside the *ConflictError.
func (s *Service) Create(ctx context.Context, uid int64, in CreateInput) (*Goal, error) {
	statement, err := validateStatement(in.Statement)
	if err != nil {
		return nil, err
	}
	if hasDuplicates(in.CategoryIDs) {
		return nil, invalid(MsgDuplicatePayload)
	}

	var created *Goal
	err = s.run(ctx, func(store *orm.Store) error {
		if err := s.ensureLongTerm(ctx, store, uid, in.LongTermID); err != nil {
			return err
		}

		count, err := goalRepo(store).Count(ctx, orm.Conditions{
			"long_term_id": in.LongTermID,
			"user_id":      uid,
		})
		if err != nil {
			return fmt.Errorf("count goals: %w", err)
		}
		if count >= int64(s.opts.Cap) {
			return invalid(MsgGoalCapReached)
		}

		goal, err := goalRepo(store).Insert(ctx, orm.NewRecord().
			Set("user_id", uid).
			Set("long_term_id", in.LongTermID).
			Set("statement", statement))
		if err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
		created = goal
		s.log.Info("goal created", "goal_id", goal.ID, "long_term_id", in.LongTermID, "user_id", uid)

		if len(in.CategoryIDs) == 0 {
			return nil
		}
		return s.attach(ctx, store, goal.ID, in.CategoryIDs)
	})
	if err != nil {
		if s.opts.Transactional {
			return nil, err
		}
		return created, err
	}
	return created, nil
}

// Update replaces a goal's statement.
func (s *Service) Update(ctx context.Context, uid, id int64, statement string) (*Goal, error) {
	trimmed, err := validateStatement(statement)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensureGoal(ctx, s.store, uid, id); err != nil {
		return nil, err
	}

	updated, err := goalRepo(s.store).UpdateByID(ctx, orm.NewRecord().
		Set("statement", trimmed).
		Set("updated_at", orm.Now), id)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

// Delete removes a goal. Its links go with it through the foreign key.
func (s *Service) Delete(ctx context.Context, uid, id int64) error {
	if _, err := s.ensureGoal(ctx, s.store, uid, id); err != nil {
		return err
	}
	if err := goalRepo(s.store).DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	s.log.Info("goal deleted", "goal_id", id, "user_id", uid)
	return nil
}

// Link attaches categories to a goal. Existing links are reported as a
// *ConflictError and nothing is written.
func (s *Service) Link(ctx context.Context, uid, id int64, categoryIDs []int64) error {
	if len(categoryIDs) == 0 {
		return invalid(MsgCategoryIDsMissing)
	}
	if hasDuplicates(categoryIDs) {
		return invalid(MsgDuplicatePayload)
	}

	return s.run(ctx, func(store *orm.Store) error {
		if _, err := s.ensureGoal(ctx, store, uid, id); err != nil {
			return err
		}
		return s.attach(ctx, store, id, categoryIDs)
	})
}

// attach pre-checks for existing links, then inserts one link at a time.
// A unique violation on insert means a concurrent request won the race;
// it stops further inserts and reports that single id.
func (s *Service) attach(ctx context.Context, store *orm.Store, goalID int64, categoryIDs []int64) error {
	links := linkRepo(store)

	existing, err := links.GetWithCondition(ctx, orm.Conditions{
		"goal_id":     goalID,
		"category_id": categoryIDs,
	})
	if err != nil {
		return fmt.Errorf("check existing links: %w", err)
	}
	if len(existing) > 0 {
		conflicts := make([]int64, len(existing))
		for i, l := range existing {
			conflicts[i] = l.CategoryID
		}
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i] < conflicts[j] })
		return &ConflictError{CategoryIDs: conflicts}
	}

	for _, categoryID := range categoryIDs {
		_, err := links.Insert(ctx, orm.NewRecord().
			Set("goal_id", goalID).
			Set("category_id", categoryID))
		if orm.IsConflict(err) {
			s.log.Warn("category link raced", "goal_id", goalID, "category_id", categoryID)
			return &ConflictError{CategoryIDs: []int64{categoryID}}
		}
		if err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}
	return nil
}

// Unlink removes links between a goal and the given categories. Missing
// links are ignored.
func (s *Service) Unlink(ctx context.Context, uid, id int64, categoryIDs []int64) error {
	if len(categoryIDs) == 0 {
		return invalid(MsgCategoryIDsMissing)
	}
	if _, err := s.ensureGoal(ctx, s.store, uid, id); err != nil {
		return err
	}

	removed, err := linkRepo(s.store).DeleteWithCondition(ctx, orm.Conditions{
		"goal_id":     id,
		"category_id": categoryIDs,
	})
	if err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	s.log.Debug("category links removed", "goal_id", id, "removed", removed)
	return nil
}

// Categories returns the categories linked to a goal, one row per link with
// the category's columns merged in.
func (s *Service) Categories(ctx context.Context, uid, id int64) ([]orm.Row, error) {
	if _, err := s.ensureGoal(ctx, s.store, uid, id); err != nil {
		return nil, err
	}

	rows, err := s.store.GetFromInnerJoin(ctx,
		GoalCategoryLinks, orm.Conditions{"goal_id": id},
		Categories, []orm.JoinPair{orm.On("category_id", "id")})
	if err != nil {
		return nil, fmt.Errorf("list goal categories: %w", err)
	}
	return rows, nil
}

// LongTerms lists the caller's long terms.
func (s *Service) LongTerms(ctx context.Context, uid int64) ([]LongTerm, error) {
	terms, err := longTermRepo(s.store).GetAll(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list long terms: %w", err)
	}
	return terms, nil
}
