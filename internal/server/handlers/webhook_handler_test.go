package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcmanager/milkledger/internal/domain/models"
)

type recordingMessaging struct {
	handled []models.WebhookPayload
}

func (r *recordingMessaging) VerifyWebhookToken(_, _, challenge string) (string, error) {
	return challenge, nil
}

func (r *recordingMessaging) HandleWebhook(_ context.Context, payload models.WebhookPayload) error {
	r.handled = append(r.handled, payload)
	return nil
}

func (r *recordingMessaging) SendOutbound(context.Context, models.OutboundMessageRequest) error {
	return nil
}

func (r *recordingMessaging) ShareStatement(context.Context, time.Time, int) (models.ShareResult, error) {
	return models.ShareResult{}, nil
}

func (r *recordingMessaging) NotifyManager(context.Context, string) error {
	return nil
}

func postWebhook(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/webhook", h.Receive)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestReceiveDispatchesOnlyMemberMessages(t *testing.T) {
	svc := &recordingMessaging{}
	h := NewWebhookHandler(svc, nil)

	w := postWebhook(t, h, `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"status":"read"}]}}]}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.handled)

	w = postWebhook(t, h, `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"919876543210","type":"text","text":{"body":"bill last"}}]}}]}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.handled, 1)
	assert.Equal(t, "bill last", svc.handled[0].Entry[0].Changes[0].Value.Messages[0].Body())

	w = postWebhook(t, h, `{"object":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, svc.handled, 1)
}
