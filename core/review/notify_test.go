package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
)

type captureMailer struct {
	messages []*core.EmailMessage
}

func (m *captureMailer) SendMessages(messages ...*core.EmailMessage) {
	m.messages = append(m.messages, messages...)
}

func TestEmailNotifier(t *testing.T) {
	mailer := &captureMailer{}
	n := NewEmailNotifier(mailer)
	p := sampleProjects()[0]

	n.Notify(p, Decision{ProjectID: p.ID, Outcome: project.StatusRejected, Comment: "Add a demo video"})
	require.Len(t, mailer.messages, 1)

	msg := mailer.messages[0]
	assert.Equal(t, "ana@example.com", msg.To[0].Address)
	assert.Equal(t, "project_rejected", msg.TemplateName)

	require.NoError(t, msg.Render("Showcase"))
	assert.Contains(t, msg.TextContent, "Hello Ana Lukusa")
	assert.Contains(t, msg.TextContent, "Add a demo video")
	assert.Contains(t, msg.HTMLContent, "Smart Garden")

	t.Run("owners without email are skipped", func(t *testing.T) {
		n.Notify(sampleProjects()[1], Decision{ProjectID: "p2", Outcome: project.StatusApproved})
		assert.Len(t, mailer.messages, 1)
	})
}
