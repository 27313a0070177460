package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PaulFidika/accesslog/core"
	"github.com/spf13/cobra"
)

// checkResult is the outcome of comparing one set's table with its mapping.
type checkResult struct {
	Set     string
	Table   string
	Missing []string
	Skipped bool
	Err     error
}

func (r checkResult) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s: error: %v", r.Set, r.Err)
	case r.Skipped:
		return fmt.Sprintf("%s: skipped (backend cannot describe %s)", r.Set, r.Table)
	case len(r.Missing) > 0:
		return fmt.Sprintf("%s: table %s lacks columns %s", r.Set, r.Table, strings.Join(r.Missing, ", "))
	default:
		return fmt.Sprintf("%s: ok", r.Set)
	}
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify each set's table has every mapped column",
		Long: `Connect to every set's store and compare the table's columns, as folded
by the store's attrcase option, with the set's column mapping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.open()
			if err != nil {
				return err
			}
			defer a.closeRegistry(reg)

			bad := 0
			for _, set := range reg.Sets() {
				r := checkSet(cmd.Context(), reg.Factory(), set)
				fmt.Fprintln(cmd.OutOrStdout(), r.String())
				if r.Err != nil || len(r.Missing) > 0 {
					bad++
				}
			}
			if bad > 0 {
				return errors.New("check failed")
			}
			return nil
		},
	}
}

func checkSet(ctx context.Context, f *core.Factory, set *core.Set) checkResult {
	res := checkResult{Set: set.Name, Table: set.Table}
	st, err := f.New(set)
	if err != nil {
		res.Err = err
		return res
	}
	defer st.Close()

	d, ok := st.(core.Describer)
	if !ok {
		res.Skipped = true
		return res
	}
	cols, err := d.Columns(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	have := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		have[c] = struct{}{}
	}
	for _, c := range set.Mapping.Columns() {
		if _, ok := have[c]; !ok {
			res.Missing = append(res.Missing, c)
		}
	}
	return res
}
