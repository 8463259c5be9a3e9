package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/contributor"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/staging"
)

func (cli *commandLine) listFields(category string) error {
	c, err := project.ParseCategory(category)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tKIND\tREQUIRED")
	for _, fs := range project.Schema(c) {
		kind := fs.Kind.String()
		if len(fs.Options) > 0 {
			kind += " (" + strings.Join(fs.Options, ", ") + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", fs.Key, fs.Label, kind, yesNo(fs.Required))
	}
	return w.Flush()
}

// submit fills the draft from opts, walks every step, and uploads it.
func (cli *commandLine) submit(ctx context.Context, opts newOptions) error {
	w := cli.wizard
	if opts.category != "" {
		c, err := project.ParseCategory(opts.category)
		if err != nil {
			return err
		}
		if err = w.SetCategory(c); err != nil {
			return describe(err)
		}
	}
	if err := cli.fillDraft(opts); err != nil {
		return describe(err)
	}
	if err := cli.stageFiles(opts); err != nil {
		return describe(err)
	}
	if err := cli.addContributors(ctx, opts.contributors); err != nil {
		return err
	}

	for w.Step() != project.StepAttachContributors {
		step := w.Step()
		if err := w.Advance(); err != nil {
			return errors.Wrapf(describe(err), "step %s", step)
		}
	}
	if err := w.StepErrors(project.StepAttachContributors); err != nil {
		return errors.Wrapf(describe(err), "step %s", project.StepAttachContributors)
	}

	if opts.dryRun {
		fmt.Fprintln(cli.out, "draft is complete")
		return nil
	}
	id, err := w.Submit(ctx, cli.userID)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cli.out, "submitted project %s, pending review\n", id)
	return nil
}

func (cli *commandLine) fillDraft(opts newOptions) error {
	w := cli.wizard
	values := []struct{ key, value string }{
		{"title", opts.title},
		{"description", opts.description},
		{"studyYear", opts.studyYear},
		{"academicYear", opts.academicYear},
		{"semester", opts.semester},
		{"tags", opts.tags},
		{"videoLink", opts.video},
	}
	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := w.SetField(v.key, v.value); err != nil {
			return err
		}
	}
	w.SetVisibility(opts.public)

	for _, pair := range opts.fields {
		key, value, ok := splitPair(pair, "=")
		if !ok {
			return fmt.Errorf("-field %q: want KEY=VALUE", pair)
		}
		if err := w.SetField(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (cli *commandLine) stageFiles(opts newOptions) error {
	w := cli.wizard
	media := []struct{ key, path string }{
		{project.FieldCoverImage, opts.cover},
		{project.FieldPosterImage, opts.poster},
	}
	for _, m := range media {
		if m.path == "" {
			continue
		}
		if err := setFile(w, m.key, m.path); err != nil {
			return err
		}
	}
	for _, pair := range opts.files {
		key, path, ok := splitPair(pair, "=")
		if !ok {
			return fmt.Errorf("-file %q: want KEY=PATH", pair)
		}
		if err := setFile(w, key, path); err != nil {
			return err
		}
	}
	for _, pdf := range opts.pdfs {
		path, name := pdf, ""
		if i := strings.LastIndex(pdf, ";"); i > 0 {
			path, name = pdf[:i], pdf[i+1:]
		}
		f, err := staging.Open(path)
		if err != nil {
			return err
		}
		if err = w.AddPDF(f, name); err != nil {
			return err
		}
	}
	return nil
}

func setFile(w *project.Wizard, key, path string) error {
	f, err := staging.Open(path)
	if err != nil {
		return err
	}
	return w.SetFile(key, f)
}

// addContributors resolves each reference to exactly one user: an id, or a
// keyword matching a single candidate.
func (cli *commandLine) addContributors(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		ref = core.CleanString(ref)
		if ref == "" {
			continue
		}
		users, err := cli.wizard.SearchContributors(ref).Wait(ctx)
		if err != nil {
			if warning := cli.wizard.SearchWarning(); warning != "" {
				return errors.New(warning)
			}
			return errors.Wrapf(err, "searching %q", ref)
		}
		usr, err := pick(ref, users)
		if err != nil {
			return err
		}
		cli.wizard.AddContributor(usr)
		fmt.Fprintf(cli.out, "contributor: %s\n", usr.FullName)
	}
	return nil
}

func pick(ref string, users []contributor.User) (contributor.User, error) {
	for _, usr := range users {
		if usr.ID == ref {
			return usr, nil
		}
	}
	switch len(users) {
	case 0:
		return contributor.User{}, fmt.Errorf("no user matches %q", ref)
	case 1:
		return users[0], nil
	}
	names := make([]string, 0, len(users))
	for _, usr := range users {
		names = append(names, usr.FullName+" ("+usr.ID+")")
	}
	return contributor.User{}, fmt.Errorf("%q matches several users: %s", ref, strings.Join(names, ", "))
}

// describe spells out validation errors field by field.
func describe(err error) error {
	vErr, ok := core.AsValidationError(err)
	if !ok || len(vErr.Fields) == 0 {
		return err
	}
	msgs := make([]string, 0, len(vErr.Fields))
	for _, fe := range vErr.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
