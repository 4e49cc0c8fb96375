package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ignacioelizeche/controlid/config"
	"github.com/ignacioelizeche/controlid/pkg/cmd/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var c = new(config.Config)
var cmdHandler = cli.NewHandler(c)

var (
	Version   = "dev-master"
	BuildTime = "undefined"
	GitHash   = "undefined"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "controlid",
	Short: "Control iD access control device relay",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	},
}

// Execute runs the relay CLI and is called by main.main()
func Execute() {
	c.BuildTime = BuildTime
	c.BuildVersion = Version
	c.BuildHash = GitHash

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.controlid.yml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	} else {
		path := absPathify("$HOME")
		if _, err := os.Stat(filepath.Join(path, ".controlid.yml")); err != nil {
			_, _ = os.Create(filepath.Join(path, ".controlid.yml"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".controlid") // name of config file (without extension)
		viper.AddConfigPath("$HOME")      // adding home directory as first search path
	}
	viper.AutomaticEnv() // read in environment variables that match

	// Fetch settings
	viper.BindEnv("PORT")
	viper.SetDefault("PORT", 8080)

	viper.BindEnv("HOST")
	viper.SetDefault("HOST", "")

	viper.BindEnv("DATABASE_URL")
	viper.SetDefault("DATABASE_URL", "sqlite3://controlid.db")

	viper.BindEnv("NATS_URL")
	viper.SetDefault("NATS_URL", "")

	viper.BindEnv("ADMIN_API_KEY")
	viper.SetDefault("ADMIN_API_KEY", "")

	viper.BindEnv("LOG_LEVEL")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.BindEnv("LOG_FORMAT")
	viper.SetDefault("LOG_FORMAT", "text")

	viper.BindEnv("FORWARD_URL")
	viper.SetDefault("FORWARD_URL", "")

	viper.BindEnv("SYNC_INTERVAL")
	viper.SetDefault("SYNC_INTERVAL", config.DefaultSyncInterval)

	viper.BindEnv("SYNC_RETRY_COUNT")
	viper.SetDefault("SYNC_RETRY_COUNT", config.DefaultSyncRetryCount)

	viper.BindEnv("SYNC_RETRY_DELAY")
	viper.SetDefault("SYNC_RETRY_DELAY", config.DefaultSyncRetryDelay)

	viper.BindEnv("SYNC_START")
	viper.SetDefault("SYNC_START", "today")

	viper.BindEnv("DEVICE_TIMEOUT")
	viper.SetDefault("DEVICE_TIMEOUT", config.DefaultDeviceTimeout)

	viper.BindEnv("FORWARD_TIMEOUT")
	viper.SetDefault("FORWARD_TIMEOUT", config.DefaultForwardTimeout)

	viper.BindEnv("SESSION_TTL")
	viper.SetDefault("SESSION_TTL", config.DefaultSessionTTL)

	viper.BindEnv("SESSION_CACHE_SIZE")
	viper.SetDefault("SESSION_CACHE_SIZE", config.DefaultSessionCacheSize)

	viper.BindEnv("COMMAND_TTL")
	viper.SetDefault("COMMAND_TTL", config.DefaultCommandTTL)

	viper.BindEnv("RESULT_RETENTION")
	viper.SetDefault("RESULT_RETENTION", config.DefaultResultRetention)

	// Comma separated in the environment
	viper.BindEnv("NOTIFICATION_CATEGORIES")
	viper.SetDefault("NOTIFICATION_CATEGORIES", []string{})

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf(`Config file not found because "%s"`, err)
		fmt.Println("")
	}

	if err := viper.Unmarshal(c); err != nil {
		log.Fatal(fmt.Sprintf("Could not read config because %s.", err))
	}
}

func absPathify(inPath string) string {
	if strings.HasPrefix(inPath, "$HOME") {
		inPath = userHomeDir() + inPath[5:]
	}

	if strings.HasPrefix(inPath, "$") {
		end := strings.Index(inPath, string(os.PathSeparator))
		inPath = os.Getenv(inPath[1:end]) + inPath[end:]
	}

	if filepath.IsAbs(inPath) {
		return filepath.Clean(inPath)
	}

	p, err := filepath.Abs(inPath)
	if err == nil {
		return filepath.Clean(p)
	}
	return ""
}

func userHomeDir() string {
	if runtime.GOOS == "windows" {
		home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
		if home == "" {
			home = os.Getenv("USERPROFILE")
		}
		return home
	}
	return os.Getenv("HOME")
}
