package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	databasex "github.com/tanpawarit/habit-elevate/pkg/database"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := databasex.Open(context.Background(), databasex.Config{
		Driver:      databasex.DriverSQLite,
		DSN:         ":memory:",
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestStore(t *testing.T) *TodoStore {
	t.Helper()

	s := NewTodoStore(newTestDB(t))
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	s.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}
	var seq atomic.Int64
	s.newID = func() string {
		return fmt.Sprintf("todo-%03d", seq.Add(1))
	}
	return s
}

func TestCreateThenListContainsRecordOnce(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	created := s.Create(ctx, "  buy milk  ", "u1")
	if !created.Success {
		t.Fatalf("Create() failed: %s", created.Message)
	}
	if created.Data.Text != "buy milk" || created.Data.Completed {
		t.Fatalf("unexpected created todo: %#v", created.Data)
	}
	if s.Create(ctx, "other owner", "u2").Success != true {
		t.Fatal("Create() for u2 failed")
	}

	listed := s.List(ctx, "u1")
	if !listed.Success {
		t.Fatalf("List() failed: %s", listed.Message)
	}
	count := 0
	for _, todo := range listed.Data {
		if todo.UserID != "u1" {
			t.Fatalf("List(u1) returned todo of %s", todo.UserID)
		}
		if todo.ID == created.Data.ID {
			count++
			if todo.Completed {
				t.Fatal("new todo must not be completed")
			}
		}
	}
	if count != 1 {
		t.Fatalf("created todo listed %d times, want 1", count)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	for _, text := range []string{"first", "second", "third"} {
		if res := s.Create(ctx, text, "u1"); !res.Success {
			t.Fatalf("Create(%q) failed: %s", text, res.Message)
		}
	}

	listed := s.List(ctx, "u1")
	got := make([]string, 0, len(listed.Data))
	for _, todo := range listed.Data {
		got = append(got, todo.Text)
	}
	if strings.Join(got, ",") != "third,second,first" {
		t.Fatalf("List() order = %v", got)
	}

	all := s.List(ctx, "")
	if len(all.Data) != 3 {
		t.Fatalf("List(\"\") returned %d todos, want 3", len(all.Data))
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		text   string
		userID string
	}{
		{name: "missing user", text: "x", userID: " "},
		{name: "empty text", text: "   ", userID: "u1"},
		{name: "too long", text: strings.Repeat("a", contractx.MaxTodoTextLength+1), userID: "u1"},
	}
	for _, tc := range cases {
		res := s.Create(ctx, tc.text, tc.userID)
		if res.Success {
			t.Fatalf("%s: expected failure", tc.name)
		}
		if !errors.Is(res.Err, contractx.ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", tc.name, res.Err)
		}
	}
}

func TestToggleTwiceRestoresOriginal(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	created := s.Create(ctx, "stretch", "u1")

	first := s.Toggle(ctx, created.Data.ID)
	if !first.Success || !first.Data.Completed {
		t.Fatalf("first Toggle() = %#v", first)
	}
	if first.Message != "Todo completed successfully" {
		t.Fatalf("first Toggle() message = %q", first.Message)
	}

	second := s.Toggle(ctx, created.Data.ID)
	if !second.Success || second.Data.Completed != created.Data.Completed {
		t.Fatalf("second Toggle() = %#v", second)
	}
}

func TestToggleUnknownID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	res := s.Toggle(context.Background(), "nope")
	if res.Success || !errors.Is(res.Err, contractx.ErrNotFound) {
		t.Fatalf("Toggle(nope) = %#v, want not found", res)
	}
}

func TestUpdateWithoutFieldsAlwaysFails(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	created := s.Create(ctx, "read", "u1")

	for _, id := range []string{created.Data.ID, "missing", ""} {
		res := s.Update(ctx, id, contractx.TodoPatch{})
		if res.Success {
			t.Fatalf("Update(%q, {}) succeeded", id)
		}
		if res.Message != "No fields to update" {
			t.Fatalf("Update(%q, {}) message = %q", id, res.Message)
		}
	}
}

func TestUpdateMergesFields(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	created := s.Create(ctx, "read", "u1")

	text := "read 10 pages"
	res := s.Update(ctx, created.Data.ID, contractx.TodoPatch{Text: &text})
	if !res.Success {
		t.Fatalf("Update() failed: %s", res.Message)
	}
	if res.Data.Text != text || res.Data.Completed {
		t.Fatalf("unexpected merged todo: %#v", res.Data)
	}
	if !res.Data.UpdatedAt.After(created.Data.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v <= %v", res.Data.UpdatedAt, created.Data.UpdatedAt)
	}

	missing := s.Update(ctx, "missing", contractx.TodoPatch{Text: &text})
	if missing.Success || !errors.Is(missing.Err, contractx.ErrNotFound) {
		t.Fatalf("Update(missing) = %#v", missing)
	}
}

func TestDeleteMatchesIDNotText(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	milk := s.Create(ctx, "buy milk", "u1")
	mom := s.Create(ctx, "call mom", "u1")

	byText := s.Delete(ctx, "buy milk")
	if byText.Success {
		t.Fatal("Delete() by text must not match")
	}

	res := s.Delete(ctx, milk.Data.ID)
	if !res.Success || res.Data != 1 {
		t.Fatalf("Delete() = %#v", res)
	}
	if got := s.Get(ctx, milk.Data.ID); got.Success {
		t.Fatal("deleted todo still readable")
	}
	if got := s.Get(ctx, mom.Data.ID); !got.Success {
		t.Fatal("unrelated todo was removed")
	}
}

func TestClearCompletedScopedToOwner(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	a := s.Create(ctx, "a", "u1")
	b := s.Create(ctx, "b", "u1")
	c := s.Create(ctx, "c", "u2")
	s.Toggle(ctx, a.Data.ID)
	s.Toggle(ctx, c.Data.ID)

	res := s.ClearCompleted(ctx, "u1")
	if !res.Success || res.Data != 1 {
		t.Fatalf("ClearCompleted(u1) = %#v", res)
	}
	if s.Get(ctx, a.Data.ID).Success {
		t.Fatal("completed todo of u1 not cleared")
	}
	if !s.Get(ctx, b.Data.ID).Success {
		t.Fatal("pending todo of u1 cleared")
	}
	if !s.Get(ctx, c.Data.ID).Success {
		t.Fatal("completed todo of u2 cleared")
	}
}

func TestStorageFailureIsEnveloped(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	s := NewTodoStore(db)
	_ = db.Close()

	res := s.List(context.Background(), "u1")
	if res.Success {
		t.Fatal("List() on closed db succeeded")
	}
	if !errors.Is(res.Err, contractx.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", res.Err)
	}
	if !strings.HasPrefix(res.Message, "Error retrieving todos") {
		t.Fatalf("message = %q", res.Message)
	}
}

type brokenResult struct{}

func (brokenResult) LastInsertId() (int64, error) { return 0, nil }
func (brokenResult) RowsAffected() (int64, error) { return 0, errors.New("driver lost count") }

func TestRowsAffectedFailureIsEnveloped(t *testing.T) {
	t.Parallel()

	_, env := rowsAffected(brokenResult{}, "clearing completed todos")
	if env.Success {
		t.Fatal("rowsAffected() reported success for a failing driver")
	}
	if !errors.Is(env.Err, contractx.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", env.Err)
	}
	if !strings.Contains(env.Message, "driver lost count") {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestClearCompletedStorageFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	s := NewTodoStore(db)
	_ = db.Close()

	res := s.ClearCompleted(context.Background(), "u1")
	if res.Success || !errors.Is(res.Err, contractx.ErrUpstream) {
		t.Fatalf("ClearCompleted() on closed db = %#v", res)
	}
	if !strings.HasPrefix(res.Message, "Error clearing completed todos") {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestOwnerDirectory(t *testing.T) {
	t.Parallel()

	d := NewOwnerDirectory(newTestDB(t))
	ctx := context.Background()

	if _, err := d.FindByPhone(ctx, "+15550001111"); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("FindByPhone() before register error = %v", err)
	}
	if err := d.Register(ctx, "u1", "+15550001111"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := d.Register(ctx, "u1", "+15550002222"); err != nil {
		t.Fatalf("Register() re-bind error = %v", err)
	}

	got, err := d.FindByPhone(ctx, "+15550002222")
	if err != nil || got != "u1" {
		t.Fatalf("FindByPhone() = %q, %v", got, err)
	}
	if _, err := d.FindByPhone(ctx, "+15550001111"); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("old phone still resolves: %v", err)
	}
	if err := d.Register(ctx, "", "x"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Register() invalid error = %v", err)
	}
}
