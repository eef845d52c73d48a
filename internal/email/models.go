package email

// SendEmailRequest is one outgoing message
type SendEmailRequest struct {
	FromAddress string `validate:"omitempty,email"`
	ToAddress   string `validate:"required,email"`
	Subject     string `validate:"required"`
	HTML        string
	Text        string `validate:"required"`
}

// SendEmailResponse reports the provider message id. Skipped is set when
// e-mail is disabled and the message was only logged.
type SendEmailResponse struct {
	MessageID string
	Skipped   bool
}
