package main

import (
	"fmt"
	"os"

	"github.com/edgeflare/pgrestmock/pkg/config"
	"github.com/spf13/cobra"
)

var cfgFile string
var cfg *config.Config
var rootCmd = &cobra.Command{
	Use:   "pgrestmock",
	Short: "pgrestmock is an in-memory PostgREST-compatible mock backend",
	Long: `pgrestmock serves PostgREST wire-protocol endpoints backed by an in-memory
store, so clients can be exercised without a database`,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(version)
			return
		}

		// If no subcommand is provided, print help
		cmd.Help()
	},
}

const version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pgrestmock.yaml)")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print the version number")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
}
