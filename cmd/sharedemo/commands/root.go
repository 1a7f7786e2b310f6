package commands

import (
	"fmt"
	"os"

	ds "github.com/andewx/dieselshare"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	cfg *ds.Config
	log *logrus.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sharedemo",
	Short: "Share a GPU surface between processes and graphics APIs",
	Long: `sharedemo renders into and displays a GPU surface shared by name
between processes, across OpenGL and Vulkan.

Start a producer with "sharedemo gl" and a consumer with "sharedemo vk"
using the same --name. Whichever starts first creates the surface.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dieselshare/dieselshare.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("name", "demo", "shared surface name")
	rootCmd.PersistentFlags().Int("frames", 0, "stop after this many frames, 0 runs until the window closes")
	rootCmd.PersistentFlags().Duration("fence-timeout", 0, "bound on waiting for the previous frame")

	// Bind flags to viper
	viper.BindPFlag("surface.name", rootCmd.PersistentFlags().Lookup("name"))
	viper.BindPFlag("handoff.frames", rootCmd.PersistentFlags().Lookup("frames"))
	viper.BindPFlag("handoff.fence_timeout", rootCmd.PersistentFlags().Lookup("fence-timeout"))
}

// setup reads the configuration and builds the logger every command uses.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = ds.LoadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	log, err = ds.NewLogger(cfg.Logging, nil)
	if err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		log.Debugf("using config file %s", used)
	}
	return nil
}
