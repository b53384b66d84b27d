package fetcher

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/rules"
)

const multipartMessage = "Message-ID: <msg1@mail.company.com>\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
	"From: Cliente <Cliente@Empresa.com>\r\n" +
	"To: soporte@company.com\r\n" +
	"Cc: Jefe <Jefe@Empresa.com>, otro@empresa.com\r\n" +
	"Subject: Problema con Impresora HP\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"La impresora no imprime.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>La impresora no imprime.</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Disposition: attachment; filename=\"foto.jpg\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"aGVsbG8gd29ybGQ=\r\n" +
	"--outer--\r\n"

func TestParseMessageMultipart(t *testing.T) {
	msg, err := ParseMessage(strings.NewReader(multipartMessage), "support")
	require.NoError(t, err)

	assert.Equal(t, "msg1@mail.company.com", msg.ID)
	assert.Equal(t, "support", msg.AccountID)
	assert.Equal(t, "Cliente@Empresa.com", msg.From)
	assert.Equal(t, []string{"soporte@company.com"}, msg.To)
	assert.Equal(t, []string{"Jefe@Empresa.com", "otro@empresa.com"}, msg.CC)
	assert.Equal(t, "Problema con Impresora HP", msg.Subject)
	assert.Equal(t, "La impresora no imprime.", msg.Body)
	assert.Contains(t, msg.HTMLBody, "<p>La impresora no imprime.</p>")
	assert.False(t, msg.IsReply)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), msg.ReceivedAt.UTC())

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "foto.jpg", msg.Attachments[0].Filename)
	assert.Equal(t, "image/jpeg", msg.Attachments[0].ContentType)
	assert.EqualValues(t, len("hello world"), msg.Attachments[0].Size)
	assert.True(t, msg.HasAttachments())

	assert.Equal(t, "Problema con Impresora HP", msg.Headers["Subject"])
}

func TestParseMessageKeepsAddressCase(t *testing.T) {
	msg, err := ParseMessage(strings.NewReader(multipartMessage), "support")
	require.NoError(t, err)

	ev := rules.NewEvaluator()
	exact := model.Condition{Field: model.FieldSender, Operator: model.OpEquals, Value: "Cliente@Empresa.com", CaseSensitive: true}
	assert.True(t, ev.Evaluate(exact, msg))

	lower := exact
	lower.Value = "cliente@empresa.com"
	assert.False(t, ev.Evaluate(lower, msg))
	lower.CaseSensitive = false
	assert.True(t, ev.Evaluate(lower, msg))
}

func TestParseMessageReply(t *testing.T) {
	raw := "Message-ID: <reply@example.com>\r\n" +
		"In-Reply-To: <msg1@mail.company.com>\r\n" +
		"References: <root@example.com> <msg1@mail.company.com>\r\n" +
		"From: a@example.com\r\n" +
		"Subject: Re: Problema\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Sigue igual.\r\n"

	msg, err := ParseMessage(strings.NewReader(raw), "support")
	require.NoError(t, err)
	assert.True(t, msg.IsReply)
	assert.Equal(t, "msg1@mail.company.com", msg.InReplyTo)
	assert.Equal(t, []string{"root@example.com", "msg1@mail.company.com"}, msg.References)
	assert.Equal(t, "Sigue igual.", msg.Body)
	assert.Empty(t, msg.Attachments)
}

func TestParseMessageSubjectReply(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: RE: hola\r\n\r\nbody\r\n"

	msg, err := ParseMessage(strings.NewReader(raw), "support")
	require.NoError(t, err)
	assert.True(t, msg.IsReply)
	assert.Empty(t, msg.ID)
}

func TestFallbackID(t *testing.T) {
	assert.Equal(t, "support:42", fallbackID("support", "42"))
}

func TestDecodeRaw(t *testing.T) {
	data := []byte("Subject: x\r\n\r\n??>>")
	padded := base64.URLEncoding.EncodeToString(data)
	unpadded := base64.RawURLEncoding.EncodeToString(data)

	got, err := decodeRaw(padded)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = decodeRaw(unpadded)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
