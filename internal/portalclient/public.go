package portalclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/teilehaus/serviceportal/internal/domain"
	"github.com/teilehaus/serviceportal/internal/service"
	"github.com/teilehaus/serviceportal/internal/wizard"
)

type createdResponse struct {
	ID uuid.UUID `json:"id"`
}

// submit posts a new record. The idempotency key comes from ctx (see
// wizard.WithSubmissionKey) so a retry replays the first result; without one
// every call gets a fresh key.
func (c *Client) submit(ctx context.Context, op, path string, body interface{}) (uuid.UUID, error) {
	key, ok := wizard.SubmissionKeyFrom(ctx)
	if !ok {
		key = uuid.NewString()
	}
	header := http.Header{}
	header.Set("Idempotency-Key", key)

	var resp createdResponse
	if err := c.doJSON(ctx, op, http.MethodPost, path, nil, header, body, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

// SubmitComplaint sends a complete complaint draft. It satisfies
// wizard.Submitter.
func (c *Client) SubmitComplaint(ctx context.Context, draft *domain.ComplaintDraft) (uuid.UUID, error) {
	return c.submit(ctx, "submit complaint", "/v1/complaints", draft)
}

// SubmitReturn sends a return request
func (c *Client) SubmitReturn(ctx context.Context, input *domain.ReturnInput) (uuid.UUID, error) {
	return c.submit(ctx, "submit return", "/v1/returns", input)
}

// SubmitInquiry sends a contact, motor or B2B inquiry
func (c *Client) SubmitInquiry(ctx context.Context, sub service.InquirySubmission) (uuid.UUID, error) {
	var resp createdResponse
	if err := c.doJSON(ctx, "submit inquiry", http.MethodPost, "/v1/inquiries", nil, nil, sub, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

// UploadAttachment stores a file and returns the metadata to put on the draft
func (c *Client) UploadAttachment(ctx context.Context, fileName string, r io.Reader, isDiagnostic bool) (*domain.AttachmentInput, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("isDiagnostic", strconv.FormatBool(isDiagnostic)); err != nil {
		return nil, err
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/attachments", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var att domain.AttachmentInput
	if err := c.send(req, "upload attachment", &att); err != nil {
		return nil, err
	}
	return &att, nil
}

// PopupConfig fetches the public popup configuration
func (c *Client) PopupConfig(ctx context.Context) (*domain.PopupConfig, error) {
	var cfg domain.PopupConfig
	if err := c.doJSON(ctx, "get popup config", http.MethodGet, "/v1/popup-config", nil, nil, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
