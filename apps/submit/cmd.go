package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/trezcool/showcase/core/project"
)

var errHelp = errors.New("help provided")

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ", ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// newOptions holds the draft as given on the command line.
type newOptions struct {
	category     string
	title        string
	description  string
	studyYear    string
	academicYear string
	semester     string
	tags         string
	video        string
	cover        string
	poster       string
	public       bool
	dryRun       bool
	pdfs         listFlag // PATH or PATH;DISPLAY NAME
	fields       listFlag // KEY=VALUE
	files        listFlag // KEY=PATH
	contributors listFlag // name or email keyword
}

type commandLine struct {
	wizard *project.Wizard
	userID string
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  fields CATEGORY - list the fields of a category")
	fmt.Fprintln(cli.out, "  new -category CATEGORY -title TEXT -description TEXT -cover PATH [...] - submit a project for review")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	fieldsCmd := flag.NewFlagSet("fields", flag.ContinueOnError)

	var opts newOptions
	newCmd := flag.NewFlagSet("new", flag.ContinueOnError)
	newCmd.StringVar(&opts.category, "category", "", "coursework, academic or competition. Required.")
	newCmd.StringVar(&opts.title, "title", "", "Project title. Required.")
	newCmd.StringVar(&opts.description, "description", "", "Project description. Required.")
	newCmd.StringVar(&opts.studyYear, "study-year", "", "Year of study, 1 to 10.")
	newCmd.StringVar(&opts.academicYear, "academic-year", "", "Academic year, like 2023/2024.")
	newCmd.StringVar(&opts.semester, "semester", "", "Semester: 1, 2 or 3.")
	newCmd.StringVar(&opts.tags, "tags", "", "Comma separated tags.")
	newCmd.StringVar(&opts.video, "video", "", "Link to a video of the project.")
	newCmd.StringVar(&opts.cover, "cover", "", "Cover image file. Required.")
	newCmd.StringVar(&opts.poster, "poster", "", "Poster image file.")
	newCmd.BoolVar(&opts.public, "public", false, "List the project publicly once approved.")
	newCmd.BoolVar(&opts.dryRun, "dry-run", false, "Check the draft without submitting it.")
	newCmd.Var(&opts.pdfs, "pdf", "PDF document, as PATH or PATH;DISPLAY NAME. Repeatable.")
	newCmd.Var(&opts.fields, "field", "Category field, as KEY=VALUE. Repeatable.")
	newCmd.Var(&opts.files, "file", "Category file, as KEY=PATH. Repeatable.")
	newCmd.Var(&opts.contributors, "contributor", "Contributor name or email; it must match a single user. Repeatable.")

	for _, cmd := range []*flag.FlagSet{fieldsCmd, newCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "fields":
		if err := fieldsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if fieldsCmd.NArg() != 1 {
			fmt.Fprintln(cli.out, "Usage: fields CATEGORY")
			return errHelp
		}
		return cli.listFields(fieldsCmd.Arg(0))
	case "new":
		if err := newCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.submit(ctx, opts)
	default:
		cli.printUsage()
		return errHelp
	}
}

// splitPair splits "key=value" around its first separator.
func splitPair(s, sep string) (key, value string, ok bool) {
	i := strings.Index(s, sep)
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), s[i+len(sep):], true
}
