package review

import (
	"net/mail"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
)

// Notifier tells project owners about decisions made on their projects.
type Notifier interface {
	Notify(p project.ReviewableProject, d Decision)
}

// EmailNotifier sends decision notifications by email. Owners without an
// email address are skipped.
type EmailNotifier struct {
	mailSvc core.EmailService
}

func NewEmailNotifier(mailSvc core.EmailService) *EmailNotifier {
	return &EmailNotifier{mailSvc: mailSvc}
}

func (n *EmailNotifier) Notify(p project.ReviewableProject, d Decision) {
	if p.Owner.Email == "" {
		return
	}
	subject, tmpl := "Your project was approved", "project_approved"
	if d.Outcome == project.StatusRejected {
		subject, tmpl = "Your project was not approved", "project_rejected"
	}
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: p.Owner.FullName, Address: p.Owner.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: map[string]interface{}{
			"OwnerName": p.Owner.FullName,
			"Title":     p.Title,
			"Comment":   d.Comment,
		},
	})
}
