package commands

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/spf13/cobra"
)

// suggestions below this similarity are more noise than help
const minSuggestionSimilarity = 0.8

func init() {
	rootCmd.AddCommand(removeCmd)
}

var removeCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Unsubscribe an email from every course.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		removed, err := app.Directory.Remove(cmd.Context(), email)
		if err != nil {
			return err
		}
		if removed {
			fmt.Println(okStyle.Render(fmt.Sprintf("removed %s", strings.TrimSpace(email))))
			return nil
		}

		mapping, err := app.Directory.ListAll(cmd.Context())
		if err != nil {
			return err
		}
		message := fmt.Sprintf("%s is not subscribed to anything", email)
		if suggestion := closestEmail(email, mapping.Emails()); suggestion != "" {
			message += fmt.Sprintf(", did you mean %s?", suggestion)
		}
		return fmt.Errorf("%s", message)
	},
}

func closestEmail(target string, known []string) string {
	target = strings.ToLower(strings.TrimSpace(target))

	best := ""
	bestSimilarity := 0.0
	for _, email := range known {
		similarity := matchr.JaroWinkler(target, strings.ToLower(email), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = email
		}
	}
	if bestSimilarity < minSuggestionSimilarity {
		return ""
	}
	return best
}
