// Package admin holds the operator console state: the fetched record list,
// the open detail view and the notices shown to the operator. Every call is
// one request; failures are reported as notices and never retried.
package admin

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/service"
	"github.com/teilehaus/serviceportal/pkg/errors"
)

// Backend is the API surface of one record kind.
// portalclient.Resource implements it.
type Backend[R, D any] interface {
	List(ctx context.Context, filter domain.Filter) ([]R, error)
	Detail(ctx context.Context, id uuid.UUID) (D, error)
	SetStatus(ctx context.Context, id uuid.UUID, change service.StatusChange) (R, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a message for the operator. Transport failures are
// dismissable; the others disappear on the next successful action.
type Notice struct {
	ID          int
	Level       NoticeLevel
	Message     string
	Dismissable bool
}

// Console is the state of one console page over one record kind
type Console[R, D any] struct {
	mu      sync.Mutex
	backend Backend[R, D]
	idOf    func(R) uuid.UUID

	filter  domain.Filter
	records []R

	openID uuid.UUID
	detail D
	isOpen bool

	notices    []Notice
	nextNotice int
}

// NewConsole creates a console. idOf extracts the id of a list entry.
func NewConsole[R, D any](backend Backend[R, D], idOf func(R) uuid.UUID) *Console[R, D] {
	return &Console[R, D]{backend: backend, idOf: idOf}
}

// Refresh refetches the list with filter
func (c *Console[R, D]) Refresh(ctx context.Context, filter domain.Filter) error {
	records, err := c.backend.List(ctx, filter)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fail("Failed to load records", err)
		return err
	}
	c.filter = filter
	c.records = records
	c.clearTransient()
	return nil
}

// Open loads the detail view of id. A missing record closes the view and
// drops it from the list.
func (c *Console[R, D]) Open(ctx context.Context, id uuid.UUID) error {
	detail, err := c.backend.Detail(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.handleFailure(id, "Failed to load record", err)
		return err
	}
	c.openID = id
	c.detail = detail
	c.isOpen = true
	c.clearTransient()
	return nil
}

// Close closes the detail view
func (c *Console[R, D]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeDetail()
}

// SetStatus applies a status change and updates the list entry. The open
// detail view of the same record is reloaded.
func (c *Console[R, D]) SetStatus(ctx context.Context, id uuid.UUID, change service.StatusChange) error {
	updated, err := c.backend.SetStatus(ctx, id, change)
	if err != nil {
		c.mu.Lock()
		c.handleFailure(id, "Failed to save status", err)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	for i, r := range c.records {
		if c.idOf(r) == id {
			c.records[i] = updated
		}
	}
	reload := c.isOpen && c.openID == id
	c.clearTransient()
	c.post(NoticeInfo, "Status saved: "+change.Status, false)
	c.mu.Unlock()

	if reload {
		return c.Open(ctx, id)
	}
	return nil
}

// Delete removes the record. If it is open, the detail view closes.
func (c *Console[R, D]) Delete(ctx context.Context, id uuid.UUID) error {
	err := c.backend.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.handleFailure(id, "Failed to delete record", err)
		return err
	}
	c.drop(id)
	c.clearTransient()
	c.post(NoticeInfo, "Record deleted", false)
	return nil
}

// Records returns the current list
func (c *Console[R, D]) Records() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]R(nil), c.records...)
}

// Detail returns the open detail view
func (c *Console[R, D]) Detail() (D, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detail, c.isOpen
}

// OpenID returns the id of the open record
func (c *Console[R, D]) OpenID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openID, c.isOpen
}

func (c *Console[R, D]) Filter() domain.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Console[R, D]) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...)
}

// Dismiss removes a dismissable notice
func (c *Console[R, D]) Dismiss(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id && n.Dismissable {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}

// handleFailure records err against the record id. Caller holds the lock.
func (c *Console[R, D]) handleFailure(id uuid.UUID, msg string, err error) {
	if _, ok := err.(*errors.ErrNotFound); ok {
		c.drop(id)
		c.post(NoticeInfo, "Record no longer exists", false)
		return
	}
	c.fail(msg, err)
}

func (c *Console[R, D]) fail(msg string, err error) {
	switch e := err.(type) {
	case *errors.ErrTransport:
		c.post(NoticeError, msg+": connection failed, try again", true)
	case *errors.ErrInvalidStateTransition:
		c.post(NoticeError, fmt.Sprintf("%s: transition from %v to %v is not allowed", msg, e.From, e.To), false)
	default:
		c.post(NoticeError, msg+": "+err.Error(), false)
	}
}

func (c *Console[R, D]) drop(id uuid.UUID) {
	kept := c.records[:0]
	for _, r := range c.records {
		if c.idOf(r) != id {
			kept = append(kept, r)
		}
	}
	c.records = kept
	if c.isOpen && c.openID == id {
		c.closeDetail()
	}
}

func (c *Console[R, D]) closeDetail() {
	var zero D
	c.detail = zero
	c.openID = uuid.Nil
	c.isOpen = false
}

func (c *Console[R, D]) post(level NoticeLevel, msg string, dismissable bool) {
	c.nextNotice++
	c.notices = append(c.notices, Notice{ID: c.nextNotice, Level: level, Message: msg, Dismissable: dismissable})
}

// clearTransient drops the notices that are not dismissable
func (c *Console[R, D]) clearTransient() {
	kept := c.notices[:0]
	for _, n := range c.notices {
		if n.Dismissable {
			kept = append(kept, n)
		}
	}
	c.notices = kept
}
