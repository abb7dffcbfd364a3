package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mcmanager/milkledger/internal/config"
)

// Client exposes WhatsApp Cloud API operations used by the application.
type Client interface {
	SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendMessageResponse, error)
	UploadMedia(ctx context.Context, req UploadMediaRequest) (string, error)
	SendDocumentMessage(ctx context.Context, req SendDocumentMessageRequest) (*SendMessageResponse, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetTimeout(30 * time.Second)

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// SendTextMessageRequest represents a simplified text message payload.
type SendTextMessageRequest struct {
	To         string
	Body       string
	PreviewURL bool
}

// UploadMediaRequest is a file to host on WhatsApp before sending it.
type UploadMediaRequest struct {
	FileName string
	MimeType string
	Content  []byte
}

// SendDocumentMessageRequest sends previously uploaded media as a document.
type SendDocumentMessageRequest struct {
	To       string
	MediaID  string
	FileName string
	Caption  string
}

// SendMessageResponse mirrors the successful response from Meta.
type SendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type uploadMediaResponse struct {
	ID string `json:"id"`
}

// apiError represents a WhatsApp Cloud API error payload.
type apiError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func checkResponse(resp *resty.Response, apiErr *apiError) error {
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	code := resp.StatusCode()
	if apiErr.Error.Code != 0 {
		code = apiErr.Error.Code
	}
	return fmt.Errorf("whatsapp api error: code=%d, message=%s", code, apiErr.Error.Message)
}

func (c *APIClient) sendMessage(ctx context.Context, payload map[string]any) (*SendMessageResponse, error) {
	result := new(SendMessageResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return nil, fmt.Errorf("send whatsapp message: %w", err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *APIClient) SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendMessageResponse, error) {
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "text",
		"text": map[string]any{
			"body":        req.Body,
			"preview_url": req.PreviewURL,
		},
	})
}

// UploadMedia hosts a file on WhatsApp and returns its media ID.
func (c *APIClient) UploadMedia(ctx context.Context, req UploadMediaRequest) (string, error) {
	result := new(uploadMediaResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"messaging_product": "whatsapp",
			"type":              req.MimeType,
		}).
		SetMultipartField("file", req.FileName, req.MimeType, bytes.NewReader(req.Content)).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/media", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("upload whatsapp media: %w", err)
	}
	if err := checkResponse(resp, apiErr); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload whatsapp media: empty media id")
	}
	return result.ID, nil
}

// SendDocumentMessage delivers uploaded media as a document message.
func (c *APIClient) SendDocumentMessage(ctx context.Context, req SendDocumentMessageRequest) (*SendMessageResponse, error) {
	document := map[string]any{
		"id":       req.MediaID,
		"filename": req.FileName,
	}
	if req.Caption != "" {
		document["caption"] = req.Caption
	}
	return c.sendMessage(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "document",
		"document":          document,
	})
}
