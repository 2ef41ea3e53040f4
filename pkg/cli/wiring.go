package cli

import (
	"fmt"

	"github.com/telekom/regression-notifier/pkg/identity"
	"github.com/telekom/regression-notifier/pkg/mail"
	"github.com/telekom/regression-notifier/pkg/notifier"
)

// newNotifier builds the notifier and its collaborators from the loaded
// configuration.
func (rt *runtimeState) newNotifier() (*notifier.Notifier, error) {
	sender, err := rt.mailSender()
	if err != nil {
		return nil, err
	}
	c := rt.cfg
	resolver := identity.NewDirectory(c.Identity.Users, c.Identity.DefaultDomain)
	return notifier.New(notifier.Options{
		AuthorAddress:   c.Notifier.AuthorAddress,
		NotifyCulprits:  c.Notifier.NotifyCulprits,
		AttachLog:       c.Notifier.AttachLog,
		SubjectTemplate: c.Notifier.SubjectTemplate,
		LogFilename:     c.Notifier.LogFilename,
		MaxLogBytes:     c.Notifier.MaxLogBytes,
	}, sender, resolver, rt.sugar())
}

func (rt *runtimeState) mailSender() (notifier.MailSender, error) {
	if rt.sender != nil {
		return rt.sender, nil
	}
	if err := rt.cfg.ValidateMail(); err != nil {
		return nil, fmt.Errorf("invalid mail configuration: %w", err)
	}
	m := rt.cfg.Mail
	password, err := m.ResolvePassword()
	if err != nil {
		return nil, err
	}
	m.Password = password
	return mail.NewSender(m, rt.sugar()), nil
}
