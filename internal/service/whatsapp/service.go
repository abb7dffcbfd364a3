package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/config"
	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/service/commands"
	"github.com/mcmanager/milkledger/internal/service/reporting"
	client "github.com/mcmanager/milkledger/pkg/clients/whatsapp"
)

const sendTimeout = 20 * time.Second

// ErrNotConfigured is returned when a message must be delivered but the Cloud
// API credentials are missing.
var ErrNotConfigured = errors.New("whatsapp delivery is not configured")

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
	ShareStatement(ctx context.Context, start time.Time, custNo int) (models.ShareResult, error)
	NotifyManager(ctx context.Context, text string) error
}

// StatementSource prepares member statements.
type StatementSource interface {
	Statement(ctx context.Context, start time.Time, custNo int) (*reporting.Statement, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	dispatcher commands.Dispatcher
	statements StatementSource
	logger     *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance. api may be nil, in
// which case statements are shared as wa.me links only.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, api client.Client, dispatcher commands.Dispatcher, statements StatementSource, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     api,
		dispatcher: dispatcher,
		statements: statements,
		logger:     logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook answers every inbound message of the payload.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var errs []error
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := msg.Body()
	if text == "" {
		s.logger.Debug("ignoring unsupported message", zap.String("type", msg.Type), zap.String("message_id", msg.ID))
		return nil
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply, err := s.dispatcher.HandleCommand(ctx, cmd, msg.From)
	if err != nil {
		reply = commands.Reply{Text: "Sorry, your statement could not be prepared right now. Please try again later."}
		s.logger.Error("command failed", zap.Error(err), zap.String("from", msg.From))
	}

	if reply.Document != nil {
		if sendErr := s.sendDocument(ctx, msg.From, *reply.Document); sendErr != nil {
			return sendErr
		}
	}
	return s.sendText(ctx, msg.From, reply.Text, false)
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	return s.sendText(ctx, req.To, req.Message, req.PreviewURL)
}

// NotifyManager sends text to the configured manager number.
func (s *MetaWhatsAppService) NotifyManager(ctx context.Context, text string) error {
	if s.cfg.ManagerID == "" {
		return fmt.Errorf("manager number: %w", ErrNotConfigured)
	}
	return s.sendText(ctx, s.cfg.ManagerID, text, false)
}

// ShareStatement delivers the member's statement through the Cloud API: the
// passbook PDF as a document followed by the summary text. When delivery is
// not configured or fails, the result carries only the wa.me link for the
// operator to open.
func (s *MetaWhatsAppService) ShareStatement(ctx context.Context, start time.Time, custNo int) (models.ShareResult, error) {
	st, err := s.statements.Statement(ctx, start, custNo)
	if err != nil {
		return models.ShareResult{}, err
	}

	result := models.ShareResult{To: st.Phone, Link: st.Link, Message: st.Message}
	if s.client == nil {
		return result, nil
	}

	doc := models.OutboundDocument{
		To:       st.Phone,
		FileName: st.PDF.Name,
		Caption:  "Billing statement",
		MimeType: st.PDF.MimeType,
		Content:  st.PDF.Content,
	}
	if err := s.sendDocument(ctx, st.Phone, doc); err != nil {
		s.logger.Warn("statement delivery failed, falling back to share link", zap.Int("cust_no", custNo), zap.Error(err))
		return result, nil
	}
	if err := s.sendText(ctx, st.Phone, st.Message, false); err != nil {
		s.logger.Warn("statement text delivery failed", zap.Int("cust_no", custNo), zap.Error(err))
		return result, nil
	}

	result.Delivered = true
	s.logger.Info("statement delivered", zap.Int("cust_no", custNo), zap.String("to", st.Phone))
	return result, nil
}

func (s *MetaWhatsAppService) sendText(ctx context.Context, to, body string, previewURL bool) error {
	if s.client == nil {
		return ErrNotConfigured
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         to,
		Body:       body,
		PreviewURL: previewURL,
	})
	return err
}

func (s *MetaWhatsAppService) sendDocument(ctx context.Context, to string, doc models.OutboundDocument) error {
	if s.client == nil {
		return ErrNotConfigured
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	mediaID, err := s.client.UploadMedia(ctxWithTimeout, client.UploadMediaRequest{
		FileName: doc.FileName,
		MimeType: doc.MimeType,
		Content:  doc.Content,
	})
	if err != nil {
		return err
	}

	_, err = s.client.SendDocumentMessage(ctxWithTimeout, client.SendDocumentMessageRequest{
		To:       to,
		MediaID:  mediaID,
		FileName: doc.FileName,
		Caption:  doc.Caption,
	})
	return err
}
