// Package mailer composes MIME messages and delivers them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"student-helpdesk/internal/config"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

type Mailer struct {
	addr string
	auth sasl.Client
	from *mail.Address
	send sendFunc
}

// New returns nil when no SMTP host is configured.
func New(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("mail_from: %w", err)
	}
	m := &Mailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: from,
		send: smtp.SendMail,
	}
	if cfg.Port == 465 {
		m.send = smtp.SendMailTLS
	}
	if cfg.Username != "" {
		m.auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}
	return m, nil
}

// Send composes msg and hands it to the SMTP server.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := m.Compose(msg)
	if err != nil {
		return err
	}
	return m.send(m.addr, m.auth, m.from.Address, msg.To, bytes.NewReader(raw))
}

// Compose renders msg as a multipart/mixed RFC 5322 message.
func (m *Mailer) Compose(msg Message) ([]byte, error) {
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		a, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("recipient %q: %w", addr, err)
		}
		to = append(to, a)
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{m.from})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, msg.Text); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(a.ContentType, nil)
		ah.SetFilename(a.Filename)
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
