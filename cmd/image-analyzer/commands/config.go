package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/image-analyzer/cmd/image-analyzer/ui"
	"github.com/spherical/image-analyzer/internal/domain"
)

var (
	setAPIKey     string
	setWebhookURL string
	setSheetID    string
	setSheetName  string
	setMappings   []string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change your stored configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, closeSession, err := openSession(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer closeSession()

		state := sess.Orchestrator.Snapshot()
		if !state.ConfigLoaded {
			ui.Warning("No configuration stored yet, showing defaults")
		}
		ui.Configuration(sess.Document.Path(), state.Config)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the stored configuration",
	Long: `Set updates only the values passed as flags and writes the whole document
back. Field mappings take the form field=column, for example --map summary=G.`,
	Example: `  image-analyzer config set --api-key $GEMINI_API_KEY
  image-analyzer config set --webhook-url https://hooks.example.com/ocr --map originalText=B`,
	RunE: runConfigSet,
}

func init() {
	configSetCmd.Flags().StringVar(&setAPIKey, "api-key", "", "Gemini API key")
	configSetCmd.Flags().StringVar(&setWebhookURL, "webhook-url", "", "Webhook URL that receives each extraction")
	configSetCmd.Flags().StringVar(&setSheetID, "sheet-id", "", "Google Sheet ID")
	configSetCmd.Flags().StringVar(&setSheetName, "sheet-name", "", "Google Sheet tab name")
	configSetCmd.Flags().StringSliceVar(&setMappings, "map", nil, "Field mapping as field=column (repeatable)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	mappings, err := parseMappings(setMappings)
	if err != nil {
		return err
	}

	sess, closeSession, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer closeSession()

	cfg := sess.Orchestrator.Snapshot().Config
	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey = setAPIKey
	}
	if flags.Changed("webhook-url") {
		cfg.WebhookURL = setWebhookURL
	}
	if flags.Changed("sheet-id") {
		cfg.GoogleSheetID = setSheetID
	}
	if flags.Changed("sheet-name") {
		cfg.SheetName = setSheetName
	}
	for field, column := range mappings {
		cfg.FieldMappings[field] = column
	}

	if err := sess.Orchestrator.SaveConfig(cmd.Context(), cfg); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}

	ui.Success("Configuration saved")
	ui.Configuration(sess.Document.Path(), sess.Orchestrator.Snapshot().Config)
	return nil
}

// parseMappings turns field=column pairs into a map, rejecting unknown fields.
func parseMappings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, column, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok {
			return nil, fmt.Errorf("invalid mapping %q: expected field=column", pair)
		}
		if !domain.IsContentField(field) {
			return nil, fmt.Errorf("unknown field %q (valid: %s)", field, strings.Join(domain.ContentFields, ", "))
		}
		out[field] = strings.TrimSpace(column)
	}
	return out, nil
}
