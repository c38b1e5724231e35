// Package mail sends the rendered report as an email attachment. It is
// a thin collaborator around the engine output: a plain-text body, the
// PNG attached, STARTTLS and plain auth against the configured SMTP
// host.
package mail

import (
	"bytes"
	"fmt"
	"io"
	"net/smtp"
	"os"
	"path/filepath"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// Sender delivers report emails.
type Sender struct {
	Host       string
	Port       int
	From       string
	Password   string
	Recipients []string
}

// SendReport emails the report image at path to all recipients.
func (s *Sender) SendReport(path string) error {
	if len(s.Recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	attachment, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("report file %s not found: %w", path, err)
	}

	msg, err := s.build(filepath.Base(path), attachment)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)
	if err := smtp.SendMail(addr, auth, s.From, s.Recipients, msg); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}
	return nil
}

func (s *Sender) build(filename string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer

	from := []*gomail.Address{{Address: s.From}}
	to := make([]*gomail.Address, 0, len(s.Recipients))
	for _, r := range s.Recipients {
		to = append(to, &gomail.Address{Address: r})
	}

	var h gomail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", from)
	h.SetAddressList("To", to)
	h.SetSubject(fmt.Sprintf("Market Report %s", time.Now().Format("2006-01-02 15:04")))

	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	var th gomail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return nil, fmt.Errorf("failed to create message body: %w", err)
	}
	if _, err := io.WriteString(tw, "Please find attached the latest market report.\r\n"); err != nil {
		return nil, err
	}
	tw.Close()

	var ah gomail.AttachmentHeader
	ah.Set("Content-Type", "image/png")
	ah.SetFilename(filename)
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}
	if _, err := aw.Write(attachment); err != nil {
		return nil, err
	}
	aw.Close()
	mw.Close()

	return buf.Bytes(), nil
}
