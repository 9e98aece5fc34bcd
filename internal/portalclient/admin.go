package portalclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/service"
)

// Login exchanges operator credentials for a token and keeps it for
// later admin requests
func (c *Client) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res service.LoginResult
	if err := c.doJSON(ctx, "login", http.MethodPost, "/v1/admin/login", nil, nil, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// SavePopupConfig replaces the popup configuration
func (c *Client) SavePopupConfig(ctx context.Context, cfg *domain.PopupConfig) (*domain.PopupConfig, error) {
	var saved domain.PopupConfig
	if err := c.doJSON(ctx, "save popup config", http.MethodPut, "/v1/admin/popup-config", nil, nil, cfg, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Resource is the admin surface of one record kind. R is the list entry,
// D the detail view.
type Resource[R, D any] struct {
	c    *Client
	name string
	path string
}

func (c *Client) Complaints() *Resource[*domain.Complaint, *service.ComplaintDetail] {
	return &Resource[*domain.Complaint, *service.ComplaintDetail]{c: c, name: "complaint", path: "/v1/admin/complaints"}
}

func (c *Client) Returns() *Resource[*domain.Return, *service.ReturnDetail] {
	return &Resource[*domain.Return, *service.ReturnDetail]{c: c, name: "return", path: "/v1/admin/returns"}
}

func (c *Client) Inquiries() *Resource[*domain.Inquiry, *domain.Inquiry] {
	return &Resource[*domain.Inquiry, *domain.Inquiry]{c: c, name: "inquiry", path: "/v1/admin/inquiries"}
}

// List fetches records newest first
func (r *Resource[R, D]) List(ctx context.Context, filter domain.Filter) ([]R, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.SearchTerm != "" {
		query.Set("search", filter.SearchTerm)
	}
	if filter.Type != "" {
		query.Set("type", string(filter.Type))
	}

	var out []R
	if err := r.c.doJSON(ctx, "list "+r.name, http.MethodGet, r.path, query, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resource[R, D]) Detail(ctx context.Context, id uuid.UUID) (D, error) {
	var out D
	err := r.c.doJSON(ctx, "get "+r.name, http.MethodGet, r.path+"/"+id.String(), nil, nil, nil, &out)
	return out, err
}

// SetStatus is the permissive override
func (r *Resource[R, D]) SetStatus(ctx context.Context, id uuid.UUID, change service.StatusChange) (R, error) {
	var out R
	err := r.c.doJSON(ctx, "set "+r.name+" status", http.MethodPatch, r.path+"/"+id.String(), nil, nil, change, &out)
	return out, err
}

// Transition is the strict status change
func (r *Resource[R, D]) Transition(ctx context.Context, id uuid.UUID, change service.StatusChange) (R, error) {
	var out R
	err := r.c.doJSON(ctx, "transition "+r.name, http.MethodPost, r.path+"/"+id.String()+"/transition", nil, nil, change, &out)
	return out, err
}

func (r *Resource[R, D]) Delete(ctx context.Context, id uuid.UUID) error {
	return r.c.doJSON(ctx, "delete "+r.name, http.MethodDelete, r.path+"/"+id.String(), nil, nil, nil, nil)
}

func (r *Resource[R, D]) Events(ctx context.Context, id uuid.UUID) ([]*domain.StatusEvent, error) {
	var out []*domain.StatusEvent
	if err := r.c.doJSON(ctx, "list "+r.name+" events", http.MethodGet, r.path+"/"+id.String()+"/events", nil, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
