package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/freshcart/console/internal/access"
)

func newPolicyCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "policy [role]",
		Short: "Print the default role policy table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := access.DefaultPolicy()
			roles := access.Roles()
			if len(args) == 1 {
				role := access.Role(strings.ToLower(args[0]))
				if !role.Valid() {
					return fmt.Errorf("unknown role %q", args[0])
				}
				roles = []access.Role{role}
			}
			if asJSON {
				out := make(map[access.Role]access.CapabilityMap, len(roles))
				for _, role := range roles {
					out[role] = policy.Row(role)
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprint(tw, "MODULE")
			for _, role := range roles {
				fmt.Fprintf(tw, "\t%s", role)
			}
			fmt.Fprintln(tw)
			for _, module := range access.Modules() {
				fmt.Fprint(tw, module)
				for _, role := range roles {
					fmt.Fprintf(tw, "\t%s", flags(policy.Lookup(role, module)))
				}
				fmt.Fprintln(tw)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table.")
	return cmd
}

func newResolveCommand() *cobra.Command {
	var f actorFlags
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective capability map of an actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, caps, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), caps)
		},
	}
	f.bind(cmd)
	return cmd
}

func newMenuCommand() *cobra.Command {
	var f actorFlags
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Print the navigation entries visible to an actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, caps, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			items, err := access.DefaultMenu()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, item := range access.FilterMenu(items, actor.EffectiveRole(), caps) {
				fmt.Fprintf(tw, "%s\t%s\n", item.Title, item.URL)
			}
			return tw.Flush()
		},
	}
	f.bind(cmd)
	return cmd
}

func newCheckCommand() *cobra.Command {
	var (
		f      actorFlags
		module string
		action string
		path   string
		roles  []string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the route guard for an actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, caps, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			var rule access.RouteRule
			if module != "" {
				m, ok := access.ParseModule(module)
				if !ok {
					return fmt.Errorf("unknown module %q", module)
				}
				act, err := access.ParseAction(action)
				if err != nil {
					return err
				}
				rule = access.RequireModule(m, act)
			}
			for _, raw := range roles {
				role := access.Role(strings.ToLower(raw))
				if !role.Valid() {
					return fmt.Errorf("unknown role %q", raw)
				}
				rule.AllowedRoles = append(rule.AllowedRoles, role)
			}
			decision := access.Gate{}.Check(actor, caps, rule, path)
			cmd.Printf("%s", decision.Outcome)
			if decision.Redirect != "" {
				cmd.Printf(" %s", decision.Redirect)
			}
			cmd.Println()
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&module, "module", "", "Module key such as canAccessOrders.")
	cmd.Flags().StringVar(&action, "action", string(access.ActionRead), "Action: read, add, update, delete or view.")
	cmd.Flags().StringVar(&path, "path", "/", "Requested path, used for the login return target.")
	cmd.Flags().StringSliceVar(&roles, "allow", nil, "Role allow-list of the route.")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the default policy and the embedded menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			if err := access.DefaultPolicy().Validate(); err != nil {
				errs = append(errs, err)
			}
			items, err := access.DefaultMenu()
			if err != nil {
				errs = append(errs, err)
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			cmd.Printf("policy: %d roles x %d modules ok\n", len(access.Roles()), len(access.Modules()))
			cmd.Printf("menu: %d entries ok\n", len(items))
			return nil
		},
	}
}

// flags renders a capability as RAUDV letters, '-' for a missing action.
func flags(c access.Capability) string {
	var b strings.Builder
	for _, f := range []struct {
		on     bool
		letter byte
	}{{c.Read, 'R'}, {c.Add, 'A'}, {c.Update, 'U'}, {c.Delete, 'D'}, {c.View, 'V'}} {
		if f.on {
			b.WriteByte(f.letter)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
