package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvillegas/metasweep/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	                 _
	 _ __ ___   ___| |_ __ _ _____      _____  ___ _ __
	| '_ ` + "`" + ` _ \ / _ \ __/ _` + "`" + ` / __\ \ /\ / / _ \/ _ \ '_ \
	| | | | | |  __/ || (_| \__ \\ V  V /  __/  __/ |_) |
	|_| |_| |_|\___|\__\__,_|___/ \_/\_/ \___|\___| .__/
	                                              |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metasweep",
	Short: "Inspect and scrub hidden metadata from your files.",
	Long: LOGO + `metasweep inspects images, office documents, PDFs, audio, video and CSV
files for embedded metadata (author names, GPS coordinates, device serials,
revision history) and removes it safely: a failed rewrite never touches the
original file.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.metasweep.yaml)")

	// Global flags
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Emit JSON instead of formatted text")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Include muted/structural entries in output")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".metasweep")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.metasweep.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("output.json", false)
	viper.SetDefault("sanitize.sibling", false)

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func printerFromFlags(cmd *cobra.Command) (jsonMode, verbose bool) {
	jsonMode, _ = cmd.Flags().GetBool("json")
	if !jsonMode {
		jsonMode = viper.GetBool("output.json")
	}
	verbose, _ = cmd.Flags().GetBool("verbose")
	return jsonMode, verbose
}
