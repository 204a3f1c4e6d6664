package attendance_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"webinar/internal/attendance"
	"webinar/internal/store"
)

func seed(t *testing.T, recs ...attendance.Record) (*attendance.Service, []attendance.Record) {
	t.Helper()
	repo := store.NewMemory(nil)
	out, err := repo.BulkInsert(context.Background(), recs)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return attendance.NewService(repo, nil), out
}

func valid(user, email string) attendance.Record {
	return attendance.Record{Fields: attendance.Fields{
		Attended: "Yes", UserName: user, FirstName: user, LastName: "L",
		Email: email, RegistrationTime: "01/01/2022 00:00",
	}}
}

func TestUpdateRejectsInvalidEdit(t *testing.T) {
	ctx := context.Background()
	svc, recs := seed(t, valid("a", "a@x.io"))

	phone := "abc"
	_, err := svc.Update(ctx, recs[0].ID, attendance.Patch{PhoneNumber: &phone})
	var ve *attendance.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !slices.Equal(ve.Messages, []string{attendance.MsgPhoneDigits}) {
		t.Fatalf("messages = %v", ve.Messages)
	}
	got, _ := svc.Get(ctx, recs[0].ID)
	if got.PhoneNumber != "" {
		t.Fatalf("record changed: %+v", got)
	}
}

func TestUpdateClearsErrorsOnFix(t *testing.T) {
	ctx := context.Background()
	bad := valid("a", "bad")
	bad.ErrorMessages = []string{attendance.MsgEmailInvalid}
	bad.IsDuplicate, bad.DuplicateGroup = true, "duplicate-group-1"
	svc, recs := seed(t, bad)

	email := "Fixed@X.io"
	got, err := svc.Update(ctx, recs[0].ID, attendance.Patch{Email: &email})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Email != "fixed@x.io" || got.HasErrors || len(got.ErrorMessages) != 0 {
		t.Fatalf("updated = %+v", got)
	}
	if !got.IsDuplicate || got.DuplicateGroup != "duplicate-group-1" {
		t.Fatalf("duplicate flags changed: %+v", got)
	}
	after, _ := svc.Get(ctx, recs[0].ID)
	if after.HasErrors {
		t.Fatal("stored record still has errors")
	}
}

func TestUpdateValidatesMergedRecord(t *testing.T) {
	ctx := context.Background()
	// Stored row lacks a user name; editing an unrelated field must still fail.
	broken := valid("", "b@x.io")
	broken.FirstName = "B"
	broken.ErrorMessages = []string{attendance.MsgUserNameRequired}
	svc, recs := seed(t, broken)

	country := "Jordan"
	_, err := svc.Update(ctx, recs[0].ID, attendance.Patch{Country: &country})
	var ve *attendance.ValidationError
	if !errors.As(err, &ve) || !slices.Equal(ve.Messages, []string{attendance.MsgUserNameRequired}) {
		t.Fatalf("err = %v", err)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := seed(t)
	if _, err := svc.Get(ctx, "x"); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("get err = %v", err)
	}
	name := "n"
	if _, err := svc.Update(ctx, "x", attendance.Patch{FirstName: &name}); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("update err = %v", err)
	}
	if err := svc.Delete(ctx, "x"); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("delete err = %v", err)
	}
	if _, err := svc.File(ctx, "x"); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("file err = %v", err)
	}
	if err := svc.PurgeFile(ctx, "x"); !errors.Is(err, attendance.ErrNotFound) {
		t.Fatalf("purge err = %v", err)
	}
}

func TestListQueryWinsOverStatus(t *testing.T) {
	ctx := context.Background()
	errored := valid("carol", "carol@x.io")
	errored.ErrorMessages = []string{"x"}
	svc, _ := seed(t, valid("alice", "alice@x.io"), valid("bob", "bob@x.io"), errored)

	got, err := svc.List(ctx, "bob", attendance.StatusError)
	if err != nil || len(got) != 1 || got[0].UserName != "bob" {
		t.Fatalf("query list = %v, %v", got, err)
	}
	got, _ = svc.List(ctx, "", attendance.StatusError)
	if len(got) != 1 || got[0].UserName != "carol" {
		t.Fatalf("status list = %v", got)
	}
	got, _ = svc.List(ctx, "  ", attendance.StatusAll)
	if len(got) != 3 {
		t.Fatalf("all = %d", len(got))
	}

	st, _ := svc.Statistics(ctx)
	if st != (attendance.Statistics{Total: 3, Valid: 2, Error: 1}) {
		t.Fatalf("stats = %+v", st)
	}
	exp, _ := svc.Exportable(ctx)
	if len(exp) != 2 {
		t.Fatalf("exportable = %d", len(exp))
	}
}

func TestStoredValidRecordRevalidates(t *testing.T) {
	ctx := context.Background()
	svc, recs := seed(t, valid("alice", "alice@x.io"))
	got, err := svc.Get(ctx, recs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if msgs := attendance.NewValidator().Validate(got.Fields); len(msgs) != 0 {
		t.Fatalf("stored record no longer valid: %v", msgs)
	}
}
