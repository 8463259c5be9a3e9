package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
	"github.com/trezcool/showcase/core/review"
)

func (cli *commandLine) listPending(ctx context.Context, filter review.QueryFilter) error {
	if err := cli.queue.Load(ctx); err != nil {
		return err
	}
	projects := cli.queue.Filter(filter)
	if len(projects) == 0 {
		fmt.Fprintln(cli.out, "no pending project")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tOWNER\tSUBMITTED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Category, p.Owner.FullName, p.CreatedAt.Format(dateLayout))
	}
	return w.Flush()
}

func (cli *commandLine) approve(ctx context.Context, ids []string, comment string) error {
	if err := cli.queue.Load(ctx); err != nil {
		return err
	}
	decisions := make([]review.Decision, 0, len(ids))
	for _, id := range ids {
		decisions = append(decisions, review.Decision{ProjectID: id, Outcome: project.StatusApproved, Comment: comment})
	}
	if err := cli.queue.DecideAll(ctx, decisions...); err != nil {
		return describe(err)
	}
	fmt.Fprintf(cli.out, "approved %s\n", strings.Join(ids, ", "))
	return nil
}

func (cli *commandLine) reject(ctx context.Context, id, reason string) error {
	if err := cli.queue.Load(ctx); err != nil {
		return err
	}
	if err := cli.queue.Reject(ctx, id, reason); err != nil {
		return describe(err)
	}
	fmt.Fprintf(cli.out, "rejected %s\n", id)
	return nil
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
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
