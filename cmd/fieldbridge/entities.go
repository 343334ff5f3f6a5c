package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var entitiesJSONOutput bool

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List registered entity types",
	Args:  cobra.NoArgs,
	RunE:  runEntities,
}

func init() {
	entitiesCmd.Flags().BoolVar(&entitiesJSONOutput, "json", false,
		"Output in JSON format")
}

func runEntities(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	names := env.registry.Names()

	if entitiesJSONOutput {
		items := make([]map[string]any, 0, len(names))
		for _, name := range names {
			sch, err := env.registry.Get(name)
			if err != nil {
				return err
			}
			relations := make([]string, 0, len(sch.Relations))
			for _, rel := range sch.Relations {
				relations = append(relations, rel.Target)
			}
			items = append(items, map[string]any{
				"name":      sch.Name,
				"external":  sch.External,
				"fields":    len(sch.Fields),
				"relations": relations,
			})
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"entities": items,
			"total":    len(items),
		})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "NAME\tEXTERNAL\tFIELDS\tRELATIONS")
	for _, name := range names {
		sch, err := env.registry.Get(name)
		if err != nil {
			return err
		}
		relations := make([]string, 0, len(sch.Relations))
		for _, rel := range sch.Relations {
			relations = append(relations, rel.Target)
		}
		relCol := "-"
		if len(relations) > 0 {
			relCol = strings.Join(relations, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			sch.Name, sch.External, len(sch.Fields), relCol)
	}
	w.Flush()

	return nil
}
