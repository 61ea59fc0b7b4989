package cli

import (
	"fmt"
	"os"
	"path"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davshare/davshare/pkg/davclient"
)

// newClient builds a logged-in client from the url/user/password settings
// (flags or DAVSHARE_URL, DAVSHARE_USER, DAVSHARE_PASSWORD).
func newClient(cmd *cobra.Command) (*davclient.Client, error) {
	url := stringSetting(cmd, "url")
	if url == "" {
		return nil, fmt.Errorf("server URL required (--url or DAVSHARE_URL)")
	}

	c := davclient.New(url, stringSetting(cmd, "user"), stringSetting(cmd, "password"))
	if err := c.Login(cmd.Context()); err != nil {
		return nil, err
	}
	return c, nil
}

// stringSetting prefers the command flag and falls back to the environment.
func stringSetting(cmd *cobra.Command, name string) string {
	if v, err := cmd.Flags().GetString(name); err == nil && v != "" {
		return v
	}
	return viper.GetString(name)
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory on the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "/"
		if len(args) == 1 {
			dir = args[0]
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		entries, err := c.List(cmd.Context(), dir)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		for _, e := range entries {
			size := "-"
			if !e.IsDir() {
				size = fmt.Sprint(e.Size)
			}
			modified := "-"
			if !e.Modified.IsZero() {
				modified = e.Modified.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Type, size, modified, e.Name)
		}
		return tw.Flush()
	},
}

var putCmd = &cobra.Command{
	Use:   "put [local file] [remote path]",
	Short: "Upload a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		local := args[0]
		remote := "/" + path.Base(local)
		if len(args) == 2 {
			remote = args[1]
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		if err := c.Upload(cmd.Context(), local, remote); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", local, remote)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [remote path]",
	Short: "Download a file to the current directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		data, err := c.Download(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		local := path.Base(args[0])
		if err := os.WriteFile(local, data, 0644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s (%d bytes)\n", local, len(data))
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir [remote path]",
	Short: "Create a folder on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		if err := c.Mkdir(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", args[0])
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [remote path]",
	Short: "Delete a file or folder on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		if err := c.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{lsCmd, putCmd, getCmd, mkdirCmd, rmCmd} {
		cmd.Flags().String("url", "", "Server URL including the mount prefix, e.g. http://localhost:8080/api")
		cmd.Flags().StringP("user", "u", "", "Username")
		cmd.Flags().String("password", "", "Password")
		rootCmd.AddCommand(cmd)
	}
}
