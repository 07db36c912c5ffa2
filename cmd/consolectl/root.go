package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freshcart/console/internal/access"
)

// BuildVersion is stamped at link time.
var BuildVersion = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "consolectl",
		Short:         "Inspect the console access policy",
		Long:          "Operator tooling for the console role policy, permission payloads and navigation menu.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the consolectl version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Printf("%s\n", BuildVersion)
			},
		},
		newPolicyCommand(),
		newResolveCommand(),
		newMenuCommand(),
		newCheckCommand(),
		newValidateCommand(),
	)
	return root
}

// actorFlags are shared by commands that evaluate one actor.
type actorFlags struct {
	role    string
	payload string
}

func (f *actorFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", "", "Actor role. Unknown roles evaluate as customer.")
	cmd.Flags().StringVar(&f.payload, "payload", "", "Server permission payload as JSON, @file to read a file or - for stdin.")
	_ = cmd.MarkFlagRequired("role")
}

func (f *actorFlags) actor() *access.Actor {
	return &access.Actor{ID: "cli", Role: access.ParseRole(f.role)}
}

// raw returns the payload bytes, nil when no payload was given.
func (f *actorFlags) raw(stdin io.Reader) ([]byte, error) {
	switch {
	case f.payload == "":
		return nil, nil
	case f.payload == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return data, nil
	case strings.HasPrefix(f.payload, "@"):
		data, err := os.ReadFile(strings.TrimPrefix(f.payload, "@"))
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return data, nil
	}
	return []byte(f.payload), nil
}

func (f *actorFlags) resolve(cmd *cobra.Command) (*access.Actor, access.CapabilityMap, error) {
	data, err := f.raw(cmd.InOrStdin())
	if err != nil {
		return nil, access.CapabilityMap{}, err
	}
	actor := f.actor()
	var raw any
	if data != nil {
		raw = data
	}
	return actor, access.ResolveActor(actor, raw), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
