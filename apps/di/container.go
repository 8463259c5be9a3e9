package di

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/review"
	"github.com/trezcool/showcase/core/staging"
	emailsvc "github.com/trezcool/showcase/services/email"
	logsvc "github.com/trezcool/showcase/services/logger"
	"github.com/trezcool/showcase/services/showcaseapi"
)

// LogPrefix prefixes every log line of the running app.
type LogPrefix string

func newLogger(conf *core.Config, prefix LogPrefix) core.Logger {
	stdLogger := log.New(os.Stderr, string(prefix), log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, os.Stderr, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newStagingOptions(conf *core.Config) staging.Options {
	return staging.Options{
		MaxImageBytes:    conf.Staging.MaxImageBytes,
		MaxDocumentBytes: conf.Staging.MaxDocumentBytes,
		MaxImagePixels:   conf.Staging.MaxImagePixels,
		PreviewSize:      conf.Staging.PreviewSize,
	}
}

func newURLRegistry() staging.URLRegistry {
	return staging.NewMemRegistry()
}

func newDirectory(conf *core.Config, searcher contributor.Searcher, logger core.Logger) *contributor.Directory {
	return contributor.NewDirectory(searcher, conf.Search.Debounce, logger)
}

// newNotifier returns nil when decision notifications are turned off.
func newNotifier(conf *core.Config, mailSvc core.EmailService) review.Notifier {
	if !conf.NotifyDecisions {
		return nil
	}
	return review.NewEmailNotifier(mailSvc)
}

// New returns a new dependency injection dig.Container.
// conf may be nil, in which case it is loaded from the environment.
func New(prefix string, conf *core.Config) *dig.Container {
	c := dig.New()

	if conf != nil {
		must(c.Provide(func() *core.Config { return conf }))
	} else {
		must(c.Provide(core.NewConfig))
	}
	must(c.Provide(func() LogPrefix { return LogPrefix(prefix) }))
	must(c.Provide(newLogger))
	must(c.Provide(newEmailService))
	must(c.Provide(showcaseapi.NewClient,
		dig.As(new(contributor.Searcher), new(project.Uploader), new(review.Backend))))

	// submission
	must(c.Provide(newStagingOptions))
	must(c.Provide(newURLRegistry))
	must(c.Provide(staging.NewManager))
	must(c.Provide(newDirectory))
	must(c.Provide(project.NewComposer))
	must(c.Provide(project.NewWizard))

	// moderation
	must(c.Provide(newNotifier))
	must(c.Provide(review.NewQueue))

	return c
}

// Flush lets pending e-mails go out, then flushes the logger reports.
// Binaries call it before exiting.
func Flush(mailSvc core.EmailService, logger core.Logger) {
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	if c, ok := logger.(interface{ Close() }); ok {
		c.Close()
	}
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
