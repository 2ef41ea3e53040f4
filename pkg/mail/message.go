package mail

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// DefaultLogFilename is the attachment name of the console log.
const DefaultLogFilename = "build.log"

// LogContentType is the content type of console log attachments.
const LogContentType = "text/plain; charset=UTF-8"

// Message is a prepared regression report.
type Message struct {
	Subject    string
	Body       string
	Attachment *Attachment
}

// Attachment is a file carried alongside the message body.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// HasAttachment reports whether the message carries an attachment.
func (m Message) HasAttachment() bool {
	return m.Attachment != nil
}

// Envelope holds the sender identity and headers added at delivery time.
type Envelope struct {
	SenderAddress string
	SenderName    string
	Mailer        string
	// Domain is used in the Message-Id header.
	Domain string
}

// Compose builds the MIME message. Without an attachment the result is a
// single text/plain part; with one it is multipart/mixed with the body
// first and the attachment second.
func Compose(env Envelope, msg Message, recipients []string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", env.SenderAddress, env.SenderName)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", fmt.Sprintf("<%s@%s>", uuid.NewString(), env.Domain))
	if env.Mailer != "" {
		m.SetHeader("X-Mailer", env.Mailer)
	}
	m.SetBody("text/plain", msg.Body)

	if a := msg.Attachment; a != nil {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		data := a.Data
		m.Attach(a.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {contentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return m
}
