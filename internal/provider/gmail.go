package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/pyladiescon/confops/internal/guard"
)

// Attachment is a file attached to an Email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Email is a message with a plain text body, an optional HTML alternative and
// attachments.
type Email struct {
	FromName    string
	FromAddress string
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// GmailClient sends mail through the Gmail REST API with an OAuth access token.
type GmailClient struct {
	api     apiClient
	baseURL string
	logger  *slog.Logger
}

// NewGmailClient creates a client. breaker may be nil.
func NewGmailClient(baseURL, accessToken string, timeout time.Duration, breaker *guard.CircuitBreaker, logger *slog.Logger) *GmailClient {
	return &GmailClient{
		api: apiClient{
			service: "gmail",
			client:  &http.Client{Timeout: timeout},
			breaker: breaker,
			auth: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+accessToken)
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Send delivers the email and returns the provider's message id.
func (c *GmailClient) Send(ctx context.Context, e Email) (string, error) {
	raw, err := BuildMIME(e)
	if err != nil {
		return "", err
	}

	body := map[string]string{"raw": base64.URLEncoding.EncodeToString(raw)}
	var resp struct {
		ID string `json:"id"`
	}
	if _, err := c.api.do(ctx, http.MethodPost, c.baseURL+"/gmail/v1/users/me/messages/send", body, &resp, http.StatusOK); err != nil {
		return "", fmt.Errorf("send mail to %s: %w", strings.Join(e.To, ", "), err)
	}
	c.logger.Debug("mail sent", "to", e.To, "message_id", resp.ID)
	return resp.ID, nil
}

// BuildMIME renders e as an RFC 5322 message: multipart/mixed holding a
// multipart/alternative body followed by the attachments.
func BuildMIME(e Email) ([]byte, error) {
	if len(e.To) == 0 {
		return nil, fmt.Errorf("mail: no recipients")
	}

	var buf bytes.Buffer
	from := mail.Address{Name: e.FromName, Address: e.FromAddress}
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	if err := writeTextPart(altWriter, "text/plain; charset=utf-8", e.Text); err != nil {
		return nil, err
	}
	if e.HTML != "" {
		if err := writeTextPart(altWriter, "text/html; charset=utf-8", e.HTML); err != nil {
			return nil, err
		}
	}
	if err := altWriter.Close(); err != nil {
		return nil, fmt.Errorf("close alternative part: %w", err)
	}

	altHeader := textproto.MIMEHeader{}
	altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altWriter.Boundary()))
	part, err := mixed.CreatePart(altHeader)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := part.Write(alt.Bytes()); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}

	for _, a := range e.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", ct)
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
		part, err := mixed.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create attachment %s: %w", a.Filename, err)
		}
		if err := writeBase64Lines(part, a.Data); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", a.Filename, err)
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	return writeBase64Lines(part, []byte(body))
}

// writeBase64Lines writes data base64 encoded in 76 character lines.
func writeBase64Lines(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
