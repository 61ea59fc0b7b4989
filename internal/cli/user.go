package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davshare/davshare/pkg/user"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long:  `Add, remove, and list accounts accepted by the davshare server.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add [username] [password]",
	Short: "Add a new user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getUserStore()
		if err != nil {
			return err
		}

		if err := store.Add(args[0], args[1]); err != nil {
			return err
		}
		if err := store.Save(); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}

		fmt.Printf("User %s created.\n", args[0])
		return nil
	},
}

var userRmCmd = &cobra.Command{
	Use:   "rm [username]",
	Short: "Remove a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getUserStore()
		if err != nil {
			return err
		}

		store.Delete(args[0])
		if err := store.Save(); err != nil {
			return fmt.Errorf("failed to save changes: %w", err)
		}

		fmt.Printf("User %s removed.\n", args[0])
		return nil
	},
}

var userLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := getUserStore()
		if err != nil {
			return err
		}

		users := store.List()
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}
		for _, u := range users {
			fmt.Println("-", u)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRmCmd)
	userCmd.AddCommand(userLsCmd)
}

func getUserStore() (*user.Store, error) {
	configDir := viper.GetString("config_dir")
	if configDir == "" {
		configDir = "."
	}
	return user.NewStore(filepath.Join(configDir, "users.json"))
}
