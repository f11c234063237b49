package cmd

import (
	"fmt"

	"massa-backend/internal/prefs"

	"github.com/spf13/cobra"
)

var prefsPath string

func init() {
	prefsCmd.PersistentFlags().StringVar(&prefsPath, "file", "", "preferences file (default <user config dir>/massa/preferences.yaml)")
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
	RootCmd.AddCommand(prefsCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change the local theme and language",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [theme|language]",
	Short: "Print one preference, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := loadPrefs()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "theme: %s\nlanguage: %s\n", p.Theme, p.Language)
			return nil
		}
		v, err := p.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <theme|language> <value>",
	Short: "Change one preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, path, err := loadPrefs()
		if err != nil {
			return err
		}
		if err := p.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := prefs.Save(path, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s\n", args[0], args[1])
		return nil
	},
}

func loadPrefs() (prefs.Preferences, string, error) {
	return loadPrefsFrom(prefsPath)
}

// loadPrefsFrom reads path, or the default location when path is empty
func loadPrefsFrom(path string) (prefs.Preferences, string, error) {
	if path == "" {
		var err error
		if path, err = prefs.DefaultPath(); err != nil {
			return prefs.Preferences{}, "", err
		}
	}
	p, err := prefs.Load(path)
	return p, path, err
}
