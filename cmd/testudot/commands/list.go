package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every subscribed email and the courses it watches.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		mapping, err := app.Directory.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(mapping) == 0 {
			fmt.Println(dimStyle.Render("no subscriptions yet"))
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"Email", "Courses"})
		for _, email := range mapping.Emails() {
			t.AppendRow(table.Row{email, strings.Join(mapping[email], ", ")})
		}
		t.Render()
		return nil
	},
}
