package emailsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/showcase/core"
)

func testConfig(t *testing.T) *core.Config {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_APPNAME", "Showcase")
	t.Setenv("TEST_DEFAULTFROMEMAIL", "Showcase <noreply@showcase.test>")
	t.Setenv("TEST_SENDGRIDAPIKEY", "SG.test")
	conf, err := core.NewConfig()
	require.NoError(t, err)
	return conf
}

func approvedMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Ana", Address: "ana@example.com"}},
		Subject:      "Your project was approved",
		TemplateName: "project_approved",
		TemplateData: map[string]interface{}{"OwnerName": "Ana", "Title": "Smart Garden", "Comment": "good job"},
	}
}

func TestConsoleService(t *testing.T) {
	logger := core.NewMemLogger()
	svc := NewConsoleServiceMock(testConfig(t), logger)

	svc.SendMessages(
		approvedMessage(),
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "hi"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@example.com"}}, TemplateName: "no_such_template"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Smart Garden")
	assert.Contains(t, sent[0].HTMLContent, "<strong>Smart Garden</strong>")
	assert.Len(t, logger.Entries("error"), 1, "unknown template is logged")
}

func TestSendgridService(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		auth, body = r.Header.Get("Authorization"), string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	oldHost := host
	host = srv.URL
	defer func() { host = oldHost }()

	logger := core.NewMemLogger()
	svc := NewSendgridService(testConfig(t), logger)
	svc.SendMessages(approvedMessage())
	svc.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer SG.test", auth)
	assert.Contains(t, body, `"ana@example.com"`)
	assert.Contains(t, body, "[Showcase] Your project was approved")
	assert.Contains(t, body, "noreply@showcase.test")
	assert.Empty(t, logger.Entries("error"))
}
