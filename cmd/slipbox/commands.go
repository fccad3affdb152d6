package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/starford/slipbox/internal"
	"github.com/starford/slipbox/internal/mcpserver"
	"github.com/starford/slipbox/internal/reconcile"
)

// open loads the config and opens the slip box with logs on stderr, leaving
// stdout for command output.
func open(cmd *cli.Command, opts ...internal.Option) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts = append([]internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	}, opts...)
	return internal.Open(opts...)
}

func args(cmd *cli.Command, n int) ([]string, error) {
	if cmd.Args().Len() != n {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", cmd.Name, n, cmd.Args().Len())
	}
	out := make([]string, n)
	for i := range out {
		out[i] = cmd.Args().Get(i)
	}
	return out, nil
}

func syncCmd(_ context.Context, cmd *cli.Command) error {
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Engine.Sync()
	if err != nil {
		return err
	}
	printReport(os.Stdout, rep)
	return rep.Err()
}

func resyncCmd(_ context.Context, cmd *cli.Command) error {
	var resolver reconcile.ConflictResolver = reconcile.DeclineAll{}
	switch {
	case cmd.Bool("yes"):
		resolver = reconcile.AcceptAll{}
	case isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()):
		resolver = reconcile.Interactive{}
	}

	app, err := open(cmd, internal.WithResolver(resolver))
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Engine.Resync()
	if err != nil {
		return err
	}
	w := os.Stdout
	for _, d := range rep.Created {
		fmt.Fprintf(w, "registered  %s -> %s\n", d.Reference, d.Filename)
	}
	for _, r := range rep.Rebound {
		fmt.Fprintf(w, "renamed     %s: %s -> %s\n", r.Reference, r.OldFilename, r.NewFilename)
	}
	for _, r := range rep.Rereferenced {
		fmt.Fprintf(w, "rereferenced %s -> %s (%s)\n", r.OldReference, r.Reference, r.NewFilename)
	}
	for _, f := range rep.ManifestAppended {
		fmt.Fprintf(w, "declared    %s\n", f)
	}
	for _, f := range rep.FromTemplate {
		fmt.Fprintf(w, "created     %s from template\n", f)
	}
	for _, c := range rep.Declined {
		fmt.Fprintf(w, "declined    %s %s\n", c.Kind, c.Filename)
	}
	printReport(w, &rep.Report)
	return rep.Err()
}

func watchCmd(ctx context.Context, cmd *cli.Command) error {
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := app.Engine.Sync(); err != nil {
		return err
	}
	if err := os.MkdirAll(app.Config.Workspace.NotesPath(), 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	return reconcile.Watch(ctx, app.Engine, app.Config.Workspace.NotesPath(), app.Config.Watch.Options())
}

func renameFileCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 2)
	if err != nil {
		return err
	}
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Engine.RenameFilename(a[0], a[1])
}

func renameRefCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 2)
	if err != nil {
		return err
	}
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Engine.RenameReference(a[0], a[1])
	if rep != nil {
		for _, rw := range rep.Rewritten {
			fmt.Fprintf(os.Stdout, "rewrote %s (%d markers)\n", rw.Filename, rw.Markers)
		}
	}
	return err
}

func removeCmd(ctx context.Context, cmd *cli.Command) error {
	a, err := args(cmd, 1)
	if err != nil {
		return err
	}
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Engine.Remove(a[0])
}

func graphCmd(ctx context.Context, cmd *cli.Command) error {
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	m, err := app.Service.Graph(ctx)
	if err != nil {
		return err
	}
	_, err = m.WriteTo(os.Stdout)
	return err
}

func unreferencedCmd(ctx context.Context, cmd *cli.Command) error {
	app, err := open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	nodes, err := app.Service.Unreferenced(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", n.Reference, n.Filename)
	}
	return nil
}

func mcpCmd(_ context.Context, cmd *cli.Command) error {
	app, err := open(cmd, internal.WithResolver(reconcile.DeclineAll{}))
	if err != nil {
		return err
	}
	defer app.Close()
	return mcpserver.New(app.Service).ServeStdio()
}

func printReport(w io.Writer, rep *reconcile.Report) {
	for _, d := range rep.Dirty {
		fmt.Fprintf(w, "scanned     %s\n", d.Filename)
	}
	for _, l := range rep.LinksCreated {
		fmt.Fprintf(w, "+link       %s -> %s#%s\n", l.Source, l.Target, l.Label)
	}
	for _, l := range rep.LinksDeleted {
		fmt.Fprintf(w, "-link       %s -> %s#%s\n", l.Source, l.Target, l.Label)
	}
	for _, d := range rep.Dangling {
		fmt.Fprintf(w, "dangling    %s -> %s#%s\n", d.Source, d.Reference, d.Label)
	}
	for _, msg := range rep.FailureMessages() {
		fmt.Fprintf(w, "failed      %s\n", msg)
	}
}
