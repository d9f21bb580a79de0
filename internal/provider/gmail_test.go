package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmail() Email {
	return Email{
		FromName:    "PyLadiesCon Organizers",
		FromAddress: "pyladiescon@pyladies.com",
		To:          []string{"jane@example.com"},
		Subject:     "Certificate of Attendance",
		Text:        "Dear Jane,",
		HTML:        "<p>Dear Jane,</p>",
		Attachments: []Attachment{{Filename: "ABC12-1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 fake")}},
	}
}

func TestBuildMIME(t *testing.T) {
	raw, err := BuildMIME(testEmail())
	require.NoError(t, err)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", msg.Header.Get("To"))
	assert.Contains(t, msg.Header.Get("From"), "pyladiescon@pyladies.com")

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Certificate of Attendance", subject)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])

	body, err := mr.NextPart()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body.Header.Get("Content-Type"), "multipart/alternative"))

	attachment, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "ABC12-1.pdf", attachment.FileName())
	encoded, err := io.ReadAll(attachment)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(decoded))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuildMIME_NoRecipients(t *testing.T) {
	e := testEmail()
	e.To = nil
	_, err := BuildMIME(e)
	assert.Error(t, err)
}

func TestGmailClient_Send(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/messages/send", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw = body["raw"]
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "gm-1"})
	}))
	defer srv.Close()

	c := NewGmailClient(srv.URL, "access", time.Second, nil, discardLogger())
	id, err := c.Send(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "gm-1", id)

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "multipart/mixed")
}

func TestGmailClient_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGmailClient(srv.URL, "access", time.Second, nil, discardLogger())
	_, err := c.Send(context.Background(), testEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
