package mailer

import (
	"github.com/quotamail/quotamail/internal/errors"
	"github.com/quotamail/quotamail/internal/logging"
)

// Notifier resolves recipients for a quota root and dispatches the composed
// email through the transport.
type Notifier struct {
	resolver  RecipientResolver
	transport Transport
	subject   string
	logger    *logging.Logger
}

// NotifierOption is a functional option for Notifier
type NotifierOption func(*Notifier)

// WithSubject overrides the default notification subject.
func WithSubject(subject string) NotifierOption {
	return func(n *Notifier) {
		if subject != "" {
			n.subject = subject
		}
	}
}

// WithLogger sets the logger used for delivery reporting.
func WithLogger(logger *logging.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier creates a notifier over the given resolver and transport.
func NewNotifier(resolver RecipientResolver, transport Transport, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		resolver:  resolver,
		transport: transport,
		subject:   DefaultSubject,
		logger:    logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends one email with the given body to the recipients of the quota
// root. Resolution failures and delivery failures surface as their own error
// types so the pipeline can report them distinctly.
func (n *Notifier) Notify(quotaRoot, body string) error {
	recipients, err := n.resolver.ResolveRecipients(quotaRoot)
	if err != nil {
		if _, ok := err.(*errors.ErrRecipientResolution); ok {
			return err
		}
		return &errors.ErrRecipientResolution{QuotaRoot: quotaRoot, Err: err}
	}

	if err := n.transport.Send(recipients, n.subject, body); err != nil {
		return &errors.ErrMailDelivery{Recipients: recipients, Err: err}
	}

	n.logger.Info("quota notification sent",
		"quota_root", quotaRoot,
		"recipients", len(recipients),
	)
	return nil
}
