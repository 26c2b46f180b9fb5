package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/tabshell/internal/appconfig"
	"pkt.systems/tabshell/internal/persist"
	"pkt.systems/tabshell/schema"
)

func newStateCmd() *cobra.Command {
	var cfgPath string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the persisted tab topology",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := persist.NewStore(cfg.StateDir)
			if err != nil {
				return err
			}
			topo := schema.DefaultTopology()
			raw, ok, err := store.Load(schema.DefaultStorageKey)
			if err != nil {
				return err
			}
			if ok {
				decoded, err := schema.DecodeTopology(raw)
				if err != nil {
					return fmt.Errorf("persisted topology: %w", err)
				}
				topo = decoded
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(topo)
			}
			return printTopology(cmd.OutOrStdout(), topo)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw document")
	return cmd
}

func printTopology(w io.Writer, topo schema.Topology) error {
	if len(topo.Workbenches) == 0 {
		_, err := fmt.Fprintln(w, "no tabs")
		return err
	}
	for _, wb := range topo.Workbenches {
		marker := " "
		if wb.ID == topo.ActiveWorkbenchID {
			marker = "*"
		}
		pin := ""
		if wb.Pinned {
			pin = " [pinned]"
		}
		if _, err := fmt.Fprintf(w, "%s %s %s%s\n", marker, wb.ID, wb.Basename, pin); err != nil {
			return err
		}
		for i, view := range wb.Views {
			active := " "
			if i == wb.ActiveViewIndex {
				active = ">"
			}
			path := ""
			if view.Path != nil {
				path = view.Path.Pathname + view.Path.Search + view.Path.Hash
			}
			if _, err := fmt.Fprintf(w, "    %s %s %s\n", active, view.ID, path); err != nil {
				return err
			}
		}
	}
	return nil
}
