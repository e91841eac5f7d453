package settings

import (
	"log/slog"
	"os"

	"github.com/0w0mewo/localsend-engine/cmd/cmdutil"
	"github.com/0w0mewo/localsend-engine/internal/config"
	"github.com/spf13/cobra"
)

var (
	node cmdutil.NodeFlags
	save bool
)

var Cmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the effective settings",
	Long:  "Print the settings in effect after applying flags to settings.json. With --save they are written back, which also creates an editable settings.json holding the defaults.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, settings, err := cmdutil.LoadSettings()
		if err != nil {
			return err
		}
		if err := node.Apply(cmd, &settings); err != nil {
			return err
		}

		if save {
			path := config.SettingsPath(dir)
			if err := config.Save(path, settings); err != nil {
				return err
			}
			slog.Info("Settings saved", "path", path)
		}

		return config.Print(os.Stdout, settings)
	},
}

func init() {
	node.Register(Cmd)
	Cmd.PersistentFlags().BoolVar(&save, "save", false, "Write the effective settings to settings.json")
}
