package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iota-uz/admin-portal/pkg/application"
)

func MigrateUp(ctx context.Context, app application.Application) error {
	return app.Migrations().Up(ctx)
}

// MigrateDown rolls back the newest migration of module, or of the last
// registered module when module is empty.
func MigrateDown(ctx context.Context, app application.Application, module string) error {
	if module == "" {
		mods := app.Migrations().Modules()
		if len(mods) == 0 {
			return fmt.Errorf("no modules with migrations")
		}
		module = mods[len(mods)-1]
	}
	return app.Migrations().Down(ctx, module)
}

func MigrateStatus(ctx context.Context, app application.Application, out io.Writer) error {
	statuses, err := app.Migrations().Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tVERSION\tAPPLIED\tFILE")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = "applied"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Module, s.Version, applied, s.Path)
	}
	return w.Flush()
}
