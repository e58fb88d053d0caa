package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	githash "github.com/ahrav/go-githash"
)

var rootCmd = &cobra.Command{
	Use:   "githash",
	Short: "Deterministic directory fingerprints via git",
	Long: "githash stages a directory with git into a private index and derives\n" +
		"deterministic, content-addressed fingerprints from the result. The\n" +
		"enclosing repository, if any, is never touched.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/githash/config.yaml)")
	rootCmd.PersistentFlags().String("engine", "index", "snapshot engine: index or ls-files")
	rootCmd.PersistentFlags().String("git", "git", "git binary to invoke")
	rootCmd.PersistentFlags().String("control-dir", githash.DefaultControlDir, "metadata directory created inside the tracked tree")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	viper.BindPFlag("git", rootCmd.PersistentFlags().Lookup("git"))
	viper.BindPFlag("control_dir", rootCmd.PersistentFlags().Lookup("control-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GITHASH")
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "githash")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "githash")
	}
	return "."
}

// repoOptions assembles the Repo options selected by the persistent flags
// and their GITHASH_* environment equivalents.
func repoOptions() ([]githash.Option, error) {
	engine, err := parseEngine(viper.GetString("engine"))
	if err != nil {
		return nil, err
	}
	opts := []githash.Option{
		githash.WithEngine(engine),
		githash.WithGitBinary(viper.GetString("git")),
		githash.WithControlDir(viper.GetString("control_dir")),
	}
	if viper.GetBool("verbose") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts = append(opts, githash.WithLogger(logger))
	}
	return opts, nil
}

func openRepo(dir string) (*githash.Repo, error) {
	opts, err := repoOptions()
	if err != nil {
		return nil, err
	}
	return githash.New(dir, opts...)
}

func parseEngine(name string) (githash.Engine, error) {
	switch name {
	case "index":
		return githash.EngineIndex, nil
	case "ls-files":
		return githash.EngineLsFiles, nil
	default:
		return 0, fmt.Errorf("unknown engine %q", name)
	}
}
