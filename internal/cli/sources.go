package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage event sources",
}

var sourcesRegisterCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register a new event source",
	Long: `Register a source with a declared schema. The schema file is YAML:

  required:
    - name: timestamp
      type: string
    - name: severity
      type: number

Fields without a type only check presence.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaFile, _ := cmd.Flags().GetString("schema-file")

		var sc schema.Schema
		if schemaFile != "" {
			data, err := os.ReadFile(schemaFile)
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}
			if sc, err = schema.ParseYAML(data); err != nil {
				return err
			}
		}

		src, err := apiClient().RegisterSource(args[0], sc)
		if err != nil {
			return fmt.Errorf("register source: %w", err)
		}

		fmt.Printf("Registered source %s (id: %s, schema version %d)\n",
			src.Name, src.ID, src.SchemaVersion)
		return nil
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := apiClient().ListSources()
		if err != nil {
			return fmt.Errorf("list sources: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVERSION\tFIELDS\tSTATUS")
		for _, src := range sources {
			status := "active"
			if !src.Active() {
				status = "deactivated"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				src.ID, src.Name, src.SchemaVersion,
				strings.Join(src.Schema.FieldNames(), ","), status)
		}
		return w.Flush()
	},
}

var sourcesDeactivateCmd = &cobra.Command{
	Use:   "deactivate ID",
	Short: "Deactivate a source",
	Long:  "Stop a source from producing new events. Its historical events stay queryable.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().DeactivateSource(args[0]); err != nil {
			return fmt.Errorf("deactivate source: %w", err)
		}
		fmt.Printf("Deactivated source %s\n", args[0])
		return nil
	},
}

var sourcesUpdateSchemaCmd = &cobra.Command{
	Use:   "update-schema ID",
	Short: "Replace a source's schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaFile, _ := cmd.Flags().GetString("schema-file")
		if schemaFile == "" {
			return fmt.Errorf("--schema-file is required")
		}

		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return fmt.Errorf("read schema file: %w", err)
		}
		sc, err := schema.ParseYAML(data)
		if err != nil {
			return err
		}

		src, err := apiClient().UpdateSourceSchema(args[0], sc)
		if err != nil {
			return fmt.Errorf("update schema: %w", err)
		}
		fmt.Printf("Updated source %s to schema version %d\n", src.Name, src.SchemaVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesRegisterCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesDeactivateCmd)
	sourcesCmd.AddCommand(sourcesUpdateSchemaCmd)

	sourcesRegisterCmd.Flags().String("schema-file", "", "YAML schema definition")
	sourcesUpdateSchemaCmd.Flags().String("schema-file", "", "YAML schema definition")
}
