package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/showcase/apps/di"
	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/services/showcaseapi"
)

var readPasswordFunc = term.ReadPassword // mockable

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	if err := start(ctx, os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		code = 1
	}
	stop()
	os.Exit(code)
}

func start(ctx context.Context, args []string) error {
	conf, err := core.NewConfig()
	if err != nil {
		return err
	}
	if needsAuth(args) {
		if err = authenticate(conf, os.Stderr, int(os.Stdin.Fd())); err != nil {
			return err
		}
	}

	var runErr error
	err = di.New("SUBMIT : ", conf).Invoke(func(wizard *project.Wizard, mailSvc core.EmailService, logger core.Logger) {
		defer di.Flush(mailSvc, logger)
		defer wizard.Close()

		cli := commandLine{wizard: wizard, userID: conf.API.UserID, out: os.Stdout}
		if runErr = cli.run(ctx, args); runErr != nil && runErr != errHelp {
			logger.Debug("submit command failed", runErr)
		}
	})
	if err != nil {
		return err
	}
	return runErr
}

// needsAuth reports whether the command talks to the API on behalf of a user.
func needsAuth(args []string) bool {
	return len(args) > 1 && args[1] == "new"
}

// authenticate fills in the API token, prompting for it when it is not
// configured, and the user id the token was issued to.
func authenticate(conf *core.Config, prompt io.Writer, fd int) error {
	if conf.API.Token == "" {
		fmt.Fprint(prompt, "API token: ")
		tok, err := readPasswordFunc(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return errors.Wrap(err, "reading token")
		}
		conf.API.Token = strings.TrimSpace(string(tok))
	}
	if conf.API.Token == "" {
		return errors.New("an API token is required")
	}
	if conf.API.UserID == "" {
		uid, err := showcaseapi.UserIDFromToken(conf.API.Token)
		if err != nil {
			return err
		}
		conf.API.UserID = uid
	}
	return nil
}
