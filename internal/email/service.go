package email

import (
	"context"

	"github.com/lm-legal/payments/internal/logger"
	"github.com/lm-legal/payments/internal/validator"
)

// Email sends transactional mail, or logs it when the client is disabled
type Email struct {
	client *EmailClient
	logger *logger.Logger
}

func NewEmail(client *EmailClient, logger *logger.Logger) *Email {
	return &Email{
		client: client,
		logger: logger,
	}
}

func (s *Email) SendEmail(ctx context.Context, req SendEmailRequest) (*SendEmailResponse, error) {
	if req.FromAddress == "" {
		req.FromAddress = s.client.GetFromAddress()
	}
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	if !s.client.IsEnabled() {
		s.logger.Infow("email disabled, logging message instead",
			"to", req.ToAddress,
			"subject", req.Subject,
		)
		return &SendEmailResponse{Skipped: true}, nil
	}

	messageID, err := s.client.SendEmail(ctx, req.FromAddress, req.ToAddress, req.Subject, req.HTML, req.Text)
	if err != nil {
		s.logger.Errorw("failed to send email",
			"error", err,
			"to", req.ToAddress,
			"subject", req.Subject,
		)
		return nil, err
	}

	s.logger.Infow("email sent",
		"message_id", messageID,
		"to", req.ToAddress,
		"subject", req.Subject,
	)
	return &SendEmailResponse{MessageID: messageID}, nil
}
