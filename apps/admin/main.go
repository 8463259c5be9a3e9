package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/trezcool/showcase/apps/di"
	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/review"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var code int
	err := di.New("ADMIN : ", nil).Invoke(func(queue *review.Queue, mailSvc core.EmailService, logger core.Logger) {
		defer di.Flush(mailSvc, logger)
		defer queue.Close()

		cli := commandLine{queue: queue, out: os.Stdout}
		if err := cli.run(ctx, os.Args); err != nil {
			if err != errHelp {
				logger.Debug("admin command failed", err)
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		code = 1
	}
	stop()
	os.Exit(code)
}
