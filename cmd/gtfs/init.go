package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linpawslitap/mds-scaling/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a configuration file with every default filled in. Without --config
the file goes to $XDG_CONFIG_HOME/gtfs/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		written, err := config.InitConfig(initForce)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, initForce); err != nil {
		return err
	}

	cmd.Printf("Configuration written to %s\n", path)
	return nil
}
