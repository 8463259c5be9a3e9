package di

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/review"
	emailsvc "github.com/trezcool/showcase/services/email"
)

func TestNew(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_NOTIFYDECISIONS", "true")

	c := New("TEST : ", nil)

	err := c.Invoke(func(w *project.Wizard, q *review.Queue, n review.Notifier, conf *core.Config) {
		defer w.Close()
		defer q.Close()
		assert.Equal(t, project.StepSelectCategory, w.Step())
		assert.Empty(t, q.Items())
		assert.IsType(t, &review.EmailNotifier{}, n)
		assert.True(t, conf.TestMode)
	})
	require.NoError(t, err)
}

type closingLogger struct {
	*core.MemLogger
	closed func()
}

func (l closingLogger) Close() { l.closed() }

func TestFlush(t *testing.T) {
	conf := &core.Config{AppName: "Showcase"}
	var out bytes.Buffer
	mailSvc := emailsvc.NewConsoleService(conf, &out, core.NewMemLogger())
	mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: "ana@example.com"}},
		Subject: "Project approved",
		BodyStr: "Congratulations",
	})

	var order []string
	logger := closingLogger{MemLogger: core.NewMemLogger(), closed: func() {
		order = append(order, "logger closed")
		if bytes.Contains(out.Bytes(), []byte("Project approved")) {
			order = append(order, "mail was sent first")
		}
	}}

	Flush(mailSvc, logger)
	assert.Equal(t, []string{"logger closed", "mail was sent first"}, order)

	// services without Wait or Close are fine
	Flush(nil, core.NewMemLogger())
}
