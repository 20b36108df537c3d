package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

var _ contractx.TodoStore = (*TodoStore)(nil)

// TodoStore persists todos with bun. Every storage failure is reported through the envelope.
type TodoStore struct {
	db    bun.IDB
	now   func() time.Time
	newID func() string
}

func NewTodoStore(db bun.IDB) *TodoStore {
	return &TodoStore{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *TodoStore) Create(ctx context.Context, text string, userID string) contractx.Envelope[*contractx.Todo] {
	text = strings.TrimSpace(text)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return contractx.Fail[*contractx.Todo](contractx.ErrValidation, "user_id is required to create a todo")
	}
	if err := validateText(text); err != nil {
		return contractx.Fail[*contractx.Todo](err, err.Error())
	}

	now := s.now().UTC()
	todo := &contractx.Todo{
		ID:        s.newID(),
		UserID:    userID,
		Text:      text,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.db.NewInsert().Model(todo).Exec(ctx); err != nil {
		return storageFailure[*contractx.Todo]("creating todo", err)
	}
	return contractx.OK(todo, "Todo created successfully")
}

// List returns todos newest first; an empty userID lists every owner.
func (s *TodoStore) List(ctx context.Context, userID string) contractx.Envelope[[]contractx.Todo] {
	todos := make([]contractx.Todo, 0)
	q := s.db.NewSelect().Model(&todos).OrderExpr("t.created_at DESC, t.id DESC")
	if uid := strings.TrimSpace(userID); uid != "" {
		q = q.Where("t.user_id = ?", uid)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageFailure[[]contractx.Todo]("retrieving todos", err)
	}
	return contractx.OK(todos, "Todos retrieved successfully")
}

func (s *TodoStore) Get(ctx context.Context, id string) contractx.Envelope[*contractx.Todo] {
	id = strings.TrimSpace(id)
	if id == "" {
		return contractx.Fail[*contractx.Todo](contractx.ErrValidation, "todo id is required")
	}

	todo := new(contractx.Todo)
	err := s.db.NewSelect().Model(todo).Where("t.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Fail[*contractx.Todo](contractx.ErrNotFound, "Todo not found")
	}
	if err != nil {
		return storageFailure[*contractx.Todo]("retrieving todo", err)
	}
	return contractx.OK(todo, "Todo retrieved successfully")
}

func (s *TodoStore) Update(ctx context.Context, id string, patch contractx.TodoPatch) contractx.Envelope[*contractx.Todo] {
	if patch.IsEmpty() {
		return contractx.Fail[*contractx.Todo](contractx.ErrValidation, "No fields to update")
	}

	var text string
	if patch.Text != nil {
		text = strings.TrimSpace(*patch.Text)
		if err := validateText(text); err != nil {
			return contractx.Fail[*contractx.Todo](err, err.Error())
		}
	}

	q := s.db.NewUpdate().
		Model((*contractx.Todo)(nil)).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", strings.TrimSpace(id))
	if patch.Text != nil {
		q = q.Set("text = ?", text)
	}
	if patch.Completed != nil {
		q = q.Set("completed = ?", *patch.Completed)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return storageFailure[*contractx.Todo]("updating todo", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return contractx.Fail[*contractx.Todo](contractx.ErrNotFound, "Todo not found or failed to update")
	}

	updated := s.Get(ctx, id)
	if !updated.Success {
		return updated
	}
	updated.Message = "Todo updated successfully"
	return updated
}

func (s *TodoStore) Toggle(ctx context.Context, id string) contractx.Envelope[*contractx.Todo] {
	current := s.Get(ctx, id)
	if !current.Success {
		return current
	}

	completed := !current.Data.Completed
	toggled := s.Update(ctx, current.Data.ID, contractx.TodoPatch{Completed: &completed})
	if !toggled.Success {
		return toggled
	}
	if completed {
		toggled.Message = "Todo completed successfully"
	} else {
		toggled.Message = "Todo uncompleted successfully"
	}
	return toggled
}

// Delete removes the todo with the given id. The match is on id only.
func (s *TodoStore) Delete(ctx context.Context, id string) contractx.Envelope[int64] {
	id = strings.TrimSpace(id)
	if id == "" {
		return contractx.Fail[int64](contractx.ErrValidation, "todo id is required")
	}

	res, err := s.db.NewDelete().
		Model((*contractx.Todo)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storageFailure[int64]("deleting todo", err)
	}
	n, env := rowsAffected(res, "deleting todo")
	if !env.Success {
		return env
	}
	if n == 0 {
		return contractx.Fail[int64](contractx.ErrNotFound, "Todo not found")
	}
	return contractx.OK(n, "Todo deleted successfully")
}

// ClearCompleted deletes completed todos; an empty userID clears them for every owner.
func (s *TodoStore) ClearCompleted(ctx context.Context, userID string) contractx.Envelope[int64] {
	q := s.db.NewDelete().
		Model((*contractx.Todo)(nil)).
		Where("completed = ?", true)
	if uid := strings.TrimSpace(userID); uid != "" {
		q = q.Where("user_id = ?", uid)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return storageFailure[int64]("clearing completed todos", err)
	}
	n, env := rowsAffected(res, "clearing completed todos")
	if !env.Success {
		return env
	}
	return contractx.OK(n, "Completed todos cleared successfully")
}

// rowsAffected reads the affected row count. The envelope is a success unless the driver could
// not report the count.
func rowsAffected(res sql.Result, action string) (int64, contractx.Envelope[int64]) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageFailure[int64](action, err)
	}
	return n, contractx.OK(n, "")
}

func validateText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: todo text must not be empty", contractx.ErrValidation)
	}
	if utf8.RuneCountInString(text) > contractx.MaxTodoTextLength {
		return fmt.Errorf("%w: todo text must be at most %d characters", contractx.ErrValidation, contractx.MaxTodoTextLength)
	}
	return nil
}

func storageFailure[T any](action string, err error) contractx.Envelope[T] {
	log.Error().Err(err).Str("action", action).Msg("todo store failure")
	return contractx.Fail[T](
		fmt.Errorf("%w: %s: %v", contractx.ErrUpstream, action, err),
		fmt.Sprintf("Error %s: %v", action, err),
	)
}
