package commands

import (
	"fmt"
	"testudot/internal/application"
	"testudot/internal/config"

	"github.com/spf13/cobra"
)

func init() {
	configCmd.AddCommand(configModeCmd)
	configCmd.AddCommand(configApiKeyCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Change settings, changes are written to the .local override of the config file.",
}

var configModeCmd = &cobra.Command{
	Use:       "mode <sqlite|libsql|file>",
	Short:     "Set where section state and subscriptions are persisted.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(config.ModeSqlite), string(config.ModeLibsql), string(config.ModeFile)},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := config.PersistenceMode(args[0])
		if !mode.Valid() {
			return fmt.Errorf("unknown persistence mode '%s'", mode)
		}
		err := config.UpdateLocal(configPath, func(local map[string]any) {
			config.Section(local, "persistence")["mode"] = string(mode)
		})
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("persistence mode set to %s", mode)))
		if mode == config.ModeLibsql && cfg.Persistence.Database.URL == "" {
			fmt.Println(warnStyle.Render("libsql mode needs a database url, set DATABASE_URL or persistence.database.url"))
		}
		return nil
	},
}

var configApiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Generate a new api key for the http server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := application.NewRandomAPI().GenerateApiKey()
		if err != nil {
			return err
		}
		err = config.UpdateLocal(configPath, func(local map[string]any) {
			config.Section(local, "server")["api_key"] = key
		})
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render("api key saved to " + config.LocalPath(configPath)))
		fmt.Println(key)
		return nil
	},
}
