package emailsvc

import (
	"bytes"
	"log"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ischoolgo/core"
	logsvc "github.com/trezcool/ischoolgo/services/logger"
)

func TestConsoleService_sendMessage(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), conf)
	var out bytes.Buffer
	svc := NewConsoleService(conf, logger)
	svc.out = &out

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Amina", Address: "amina@ischool.test"}},
		Subject: "Hello",
		BodyStr: "Welcome aboard",
	}
	require.NoError(t, msg.Attach(strings.NewReader("receipt"), "receipt.txt", "text/plain"))

	assert.True(t, svc.sendMessage(msg))
	body := out.String()
	assert.Contains(t, body, "Subject: [ISchool] Hello")
	assert.Contains(t, body, `To: "Amina" <amina@ischool.test>`)
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "Welcome aboard")
	assert.Contains(t, body, "filename=receipt.txt")

	assert.False(t, svc.sendMessage(&core.EmailMessage{Subject: "nobody", BodyStr: "x"}))
}

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), conf))

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "a@ischool.test"}}, Subject: "A", BodyStr: "a"},
		&core.EmailMessage{To: []mail.Address{{Address: "b@ischool.test"}}, Subject: "B"},
	)
	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "A", sent[0].Subject)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, logsvc.NewRollbarLogger(log.New(new(bytes.Buffer), "", 0), conf))

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Amina", Address: "amina@ischool.test"}},
		Bcc:         []mail.Address{{Address: "audit@ischool.test"}},
		Subject:     "Receipt",
		TextContent: "Paid",
	})
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[ISchool] Receipt", m.Personalizations[0].Subject)
	assert.Len(t, m.Personalizations[0].BCC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "noreply@localhost", m.From.Address)
}
