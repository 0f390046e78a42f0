package mailparse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "Message-ID: <abc123@mail.example>\r\n" +
	"From: Netflix <no-reply@netflix.com>\r\n" +
	"To: alice@catty.my.id\r\n" +
	"Subject: Your Netflix temporary access code\r\n" +
	"Date: Tue, 12 Mar 2024 10:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Your code is 1234.\r\n"

const multipartMessage = "Message-ID: <def456@mail.example>\r\n" +
	"From: billing@zoom.us\r\n" +
	"To: Bob <bob@cattyprems.top>, carol@catty.my.id\r\n" +
	"Subject: Invoice\r\n" +
	"Date: Tue, 12 Mar 2024 11:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=frontier\r\n" +
	"\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Invoice attached.\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Invoice attached.</p>\r\n" +
	"--frontier--\r\n"

const headerOnlyMessage = "From: someone@example.org\r\n" +
	"To: alice@catty.my.id\r\n" +
	"Subject: no id here\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"body\r\n"

func TestParsePlainMessage(t *testing.T) {
	msg, err := Parse(strings.NewReader(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "abc123@mail.example", msg.MessageID)
	assert.Contains(t, msg.From, "no-reply@netflix.com")
	assert.Equal(t, []string{"alice@catty.my.id"}, msg.To)
	assert.Equal(t, "Your Netflix temporary access code", msg.Subject)
	assert.Equal(t, "Your code is 1234.\r\n", msg.TextBody)
	assert.Empty(t, msg.HTMLBody)
	assert.Equal(t, time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC), msg.Date.UTC())
}

func TestParseMultipartMessage(t *testing.T) {
	msg, err := Parse(strings.NewReader(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "def456@mail.example", msg.MessageID)
	assert.Equal(t, []string{"bob@cattyprems.top", "carol@catty.my.id"}, msg.To)
	assert.Equal(t, "Invoice attached.\r\n", msg.TextBody)
	assert.Equal(t, "<p>Invoice attached.</p>\r\n", msg.HTMLBody)
}

func TestParseMissingMessageID(t *testing.T) {
	msg, err := Parse(strings.NewReader(headerOnlyMessage))
	require.NoError(t, err)

	assert.Empty(t, msg.MessageID)
	assert.True(t, msg.Date.IsZero())
}

func TestParseEncodedSubject(t *testing.T) {
	raw := "From: a@b.example\r\n" +
		"To: alice@catty.my.id\r\n" +
		"Subject: =?UTF-8?Q?Kode_akses_sementara_Netflix=2Dmu?=\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hi\r\n"

	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Kode akses sementara Netflix-mu", msg.Subject)
}

func TestParseHeaderLookupIsCaseInsensitive(t *testing.T) {
	raw := "From: a@b.example\r\n" +
		"X-Original-To: alice@catty.my.id\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"hi\r\n"

	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "alice@catty.my.id", msg.Header.Get("x-original-to"))
	assert.Equal(t, "alice@catty.my.id", msg.Header.Get("X-ORIGINAL-TO"))
}
