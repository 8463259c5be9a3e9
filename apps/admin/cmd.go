package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/review"
)

const dateLayout = "2006-01-02"

var errHelp = errors.New("help provided")

type commandLine struct {
	queue *review.Queue
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  pending [-search TEXT] [-category CATEGORY] [-from YYYY-MM-DD] [-to YYYY-MM-DD] - list projects awaiting review")
	fmt.Fprintln(cli.out, "  approve [-comment TEXT] ID [ID...] - approve projects")
	fmt.Fprintln(cli.out, "  reject -reason TEXT ID - reject a project")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	pendingCmd := flag.NewFlagSet("pending", flag.ContinueOnError)
	pendingSearch := pendingCmd.String("search", "", "Only projects whose title, description or owner contains TEXT.")
	pendingCategory := pendingCmd.String("category", "", "Only projects of CATEGORY: coursework, academic or competition.")
	pendingFrom := pendingCmd.String("from", "", "Only projects submitted on or after this day.")
	pendingTo := pendingCmd.String("to", "", "Only projects submitted on or before this day.")

	approveCmd := flag.NewFlagSet("approve", flag.ContinueOnError)
	approveComment := approveCmd.String("comment", "", "An optional note for the owner.")

	rejectCmd := flag.NewFlagSet("reject", flag.ContinueOnError)
	rejectReason := rejectCmd.String("reason", "", "Why the project is turned down. Required.")

	for _, cmd := range []*flag.FlagSet{pendingCmd, approveCmd, rejectCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "pending":
		if err := pendingCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		filter, err := parseFilter(*pendingSearch, *pendingCategory, *pendingFrom, *pendingTo)
		if err != nil {
			return err
		}
		return cli.listPending(ctx, filter)
	case "approve":
		if err := approveCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if approveCmd.NArg() == 0 {
			approveCmd.Usage()
			return errHelp
		}
		return cli.approve(ctx, approveCmd.Args(), *approveComment)
	case "reject":
		if err := rejectCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if rejectCmd.NArg() != 1 {
			rejectCmd.Usage()
			return errHelp
		}
		return cli.reject(ctx, rejectCmd.Arg(0), *rejectReason)
	default:
		cli.printUsage()
		return errHelp
	}
}

func parseFilter(search, category, from, to string) (review.QueryFilter, error) {
	filter := review.QueryFilter{Search: search}
	if category != "" {
		c, err := project.ParseCategory(category)
		if err != nil {
			return filter, err
		}
		filter.Category = c
	}
	var err error
	if from != "" {
		if filter.CreatedFrom, err = time.Parse(dateLayout, from); err != nil {
			return filter, fmt.Errorf("-from: %q is not a date like 2024-01-31", from)
		}
	}
	if to != "" {
		if filter.CreatedTo, err = time.Parse(dateLayout, to); err != nil {
			return filter, fmt.Errorf("-to: %q is not a date like 2024-01-31", to)
		}
		filter.CreatedTo = filter.CreatedTo.Add(24*time.Hour - time.Nanosecond) // whole day
	}
	return filter, nil
}
