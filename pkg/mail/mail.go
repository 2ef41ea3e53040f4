package mail

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/regression-notifier/pkg/config"
	"github.com/telekom/regression-notifier/pkg/metrics"
	"github.com/telekom/regression-notifier/pkg/version"
)

const (
	defaultSenderAddress = "noreply@localhost"
	defaultSenderName    = "Regression Notifier"
)

// ErrNoRecipients is returned by Send when the recipient list is empty.
var ErrNoRecipients = errors.New("cannot send mail without recipients")

// SMTPSender delivers messages with a single SMTP dial-and-send per message.
type SMTPSender struct {
	dialer   *gomail.Dialer
	envelope Envelope
	log      *zap.SugaredLogger

	// deliver is replaced in tests to capture messages.
	deliver func(*gomail.Message) error
}

// NewSender creates an SMTPSender from the mail configuration. The password
// must already be resolved.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) *SMTPSender {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.Named("mail")
	log.Infow("Initializing mail sender", "host", cfg.Host, "port", cfg.Port, "user", cfg.Username)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warn("InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in via config
	}

	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = defaultSenderAddress
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = defaultSenderName
	}

	s := &SMTPSender{
		dialer: d,
		envelope: Envelope{
			SenderAddress: senderAddr,
			SenderName:    senderName,
			Mailer:        version.UserAgent(),
			Domain:        domainOf(senderAddr),
		},
		log: log,
	}
	s.deliver = func(m *gomail.Message) error { return d.DialAndSend(m) }
	return s
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

// Send delivers msg to recipients. Failures are returned, not retried.
func (s *SMTPSender) Send(msg Message, recipients []string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	s.log.Debugw("Sending mail",
		"recipients", len(recipients),
		"subject", msg.Subject,
		"attachment", msg.HasAttachment())

	m := Compose(s.envelope, msg, recipients)
	if err := s.deliver(m); err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Host()).Inc()
		return fmt.Errorf("smtp %s:%d: %w", s.Host(), s.Port(), err)
	}
	metrics.MailSendSuccess.WithLabelValues(s.Host()).Inc()
	s.log.Infow("Mail sent", "recipients", len(recipients))
	return nil
}

func (s *SMTPSender) Host() string {
	return s.dialer.Host
}

func (s *SMTPSender) Port() int {
	return s.dialer.Port
}
