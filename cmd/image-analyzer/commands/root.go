package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/image-analyzer/cmd/image-analyzer/ui"
	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	appConfig *config.Config
	logger    *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "image-analyzer",
	Short: "Extract and translate text from images with Gemini",
	Long: `image-analyzer sends an image to a Gemini vision model, extracts the text it
contains, translates it to English and classifies the content. Results can be
summarized, turned into an email draft and forwarded to a webhook configured
per user.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appConfig = cfg

		level := cfg.Observability.LogLevel
		if !verbose {
			level = "warn"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			Output:      cmd.ErrOrStderr(),
			ServiceName: cfg.Observability.ServiceName,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
