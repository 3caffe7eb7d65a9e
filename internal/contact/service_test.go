package contact

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&Message{}, &Reply{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected service constructor error: %v", err)
	}
	return service
}

func TestSubmitStoresUnreadMessage(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	message, err := service.Submit(context.Background(), SubmitRequest{
		Name:  "Ana",
		Email: "a@b.com",
		Body:  "Hi",
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if message.ID == 0 {
		t.Fatalf("expected auto-generated id")
	}

	listed, err := service.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one message, got %d", len(listed))
	}
	if listed[0].Name != "Ana" || listed[0].Email != "a@b.com" {
		t.Fatalf("unexpected stored message: %#v", listed[0])
	}
	if listed[0].IsRead {
		t.Fatalf("expected new message to be unread")
	}
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{name: "missing name", req: SubmitRequest{Email: "a@b.com", Body: "Hi"}},
		{name: "missing email", req: SubmitRequest{Name: "Ana", Body: "Hi"}},
		{name: "missing body", req: SubmitRequest{Name: "Ana", Email: "a@b.com"}},
		{name: "blank body", req: SubmitRequest{Name: "Ana", Email: "a@b.com", Body: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Submit(context.Background(), tc.req); !errors.Is(err, ErrInvalidSubmission) {
				t.Fatalf("expected ErrInvalidSubmission, got %v", err)
			}
		})
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	db := openTestDatabase(t)
	current := time.Unix(1700000000, 0).UTC()
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			current = current.Add(time.Minute)
			return current
		},
	})
	if err != nil {
		t.Fatalf("unexpected service constructor error: %v", err)
	}

	for _, name := range []string{"first", "second", "third"} {
		if _, err := service.Submit(context.Background(), SubmitRequest{Name: name, Email: name + "@x.io", Body: "msg"}); err != nil {
			t.Fatalf("unexpected submit error: %v", err)
		}
	}

	listed, err := service.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected three messages, got %d", len(listed))
	}
	if listed[0].Name != "third" || listed[2].Name != "first" {
		t.Fatalf("expected newest first ordering, got %s, %s, %s", listed[0].Name, listed[1].Name, listed[2].Name)
	}
}

func TestMarkReadFlipsFlagAndCountsShift(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	message, err := service.Submit(context.Background(), SubmitRequest{Name: "Ana", Email: "a@b.com", Body: "Hi"})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	unread, err := service.CountUnread(context.Background())
	if err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected one unread message, got %d", unread)
	}

	if err := service.MarkRead(context.Background(), message.ID); err != nil {
		t.Fatalf("unexpected mark-read error: %v", err)
	}

	stored, err := service.Get(context.Background(), message.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if !stored.IsRead {
		t.Fatalf("expected message to be read")
	}

	unread, err = service.CountUnread(context.Background())
	if err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected zero unread messages, got %d", unread)
	}
}

func TestMarkReadUnknownIDReturnsNotFound(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	if err := service.MarkRead(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesMessageAndReplies(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	message, err := service.Submit(context.Background(), SubmitRequest{Name: "Ana", Email: "a@b.com", Body: "Hi"})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if _, err := service.Reply(context.Background(), message.ID, "Thanks for reaching out"); err != nil {
		t.Fatalf("unexpected reply error: %v", err)
	}

	if err := service.Delete(context.Background(), message.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	if _, err := service.Get(context.Background(), message.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	var replies int64
	if err := db.Model(&Reply{}).Where("contact_id = ?", message.ID).Count(&replies).Error; err != nil {
		t.Fatalf("unexpected reply count error: %v", err)
	}
	if replies != 0 {
		t.Fatalf("expected replies to be removed, found %d", replies)
	}
}

func TestDeleteUnknownIDReturnsNotFound(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	if err := service.Delete(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplyMarksMessageRepliedAndRead(t *testing.T) {
	db := openTestDatabase(t)
	service := newTestService(t, db)

	message, err := service.Submit(context.Background(), SubmitRequest{Name: "Ana", Email: "a@b.com", Body: "Hi"})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	reply, err := service.Reply(context.Background(), message.ID, "Will get back to you")
	if err != nil {
		t.Fatalf("unexpected reply error: %v", err)
	}
	if reply.ID == 0 {
		t.Fatalf("expected reply id to be assigned")
	}

	stored, err := service.Get(context.Background(), message.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if !stored.HasReply || !stored.IsRead {
		t.Fatalf("expected message replied and read, got %#v", stored)
	}
}

func TestReplyUnknownIDReturnsNotFound(t *testing.T) {
	service := newTestService(t, openTestDatabase(t))

	if _, err := service.Reply(context.Background(), 99, "hello"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
