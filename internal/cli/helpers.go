package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/db"
	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui/table"
	"github.com/needha-erp/erpdesk/internal/util"
)

// client builds the REST client from the loaded config.
func (a *app) client() (*erp.Client, error) {
	c, err := erp.NewClient(erp.Config{
		BaseURL: a.cfg.API.BaseURL,
		Timeout: a.cfg.Timeout(),
		Logger:  a.log,
	})
	if err != nil {
		return nil, util.NewError("Invalid backend URL").
			WithContext(a.cfg.API.BaseURL).
			WithSuggestion("erpdesk config api.base_url https://host  # Set a full URL").
			Wrap(err)
	}
	return c, nil
}

// source returns where table rows are read from: the replica when
// --replica is set, the REST API otherwise. Caller must call the returned
// close function.
func (a *app) source(ctx context.Context) (erp.Source, func(), error) {
	if !a.replica {
		c, err := a.client()
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}

	if a.cfg.Replica.URL == "" {
		return nil, nil, util.NoReplicaError()
	}
	r, err := db.ConnectReplica(ctx, a.cfg.Replica.URL)
	if err != nil {
		return nil, nil, util.NewError("Cannot connect to the replica database").
			WithContext(a.cfg.Replica.URL).
			WithCauses(
				"The replica is not running",
				"Wrong credentials in replica.url",
			).
			WithSuggestion("erpdesk list <department>  # Read from the API instead").
			Wrap(err)
	}
	return r, r.Close, nil
}

// lookupDepartment resolves a department name for the command line.
func lookupDepartment(name string) (erp.Department, error) {
	d, err := erp.Lookup(name)
	if err != nil {
		return erp.Department{}, util.UnknownDepartmentError(name, erp.Names())
	}
	return d, nil
}

// departmentArgs completes department names.
func departmentArgs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return erp.Names(), cobra.ShellCompDirectiveNoFileComp
}

func columns(d erp.Department) []table.Column {
	cols := make([]table.Column, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = table.Column{Key: f.Key, Title: f.Title}
	}
	return cols
}

// newController creates the grid controller for a department table,
// applying the configured page size and date column.
func (a *app) newController(d erp.Department) (*grid.Controller, error) {
	opts := d.Options(a.cfg.Table.PageSize)
	if a.cfg.Table.DateField != "" {
		if _, ok := d.Field(a.cfg.Table.DateField); ok {
			opts.DateField = grid.FieldID(a.cfg.Table.DateField)
		}
	}
	return grid.New(opts)
}

// backendError turns a client error into something a user can act on.
func (a *app) backendError(action string, err error) error {
	var se *erp.StatusError
	var ue *url.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, erp.ErrRejected), errors.As(err, &se) && se.Code < 500:
		return util.RejectedError(action, fmt.Errorf("%w: %w", util.ErrMutationRejected, err))
	case errors.As(err, &se), errors.As(err, &ue):
		return util.APIUnreachableError(a.cfg.API.BaseURL, err)
	}
	return err
}

func weightOf(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}
