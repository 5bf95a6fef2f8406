package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evdata-cli/internal/model"
)

var ocrKind string

var ocrCmd = &cobra.Command{
	Use:   "ocr <image-url>",
	Short: "Run the vision extraction on one image",
	Long:  "Sends an article image to the vision model with the prompt for --kind and prints the normalized rows with token usage and cost.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ocr"); err != nil {
			return err
		}
		router := newOCRRouter()
		if router == nil {
			return eris.New("ocr: vision model unavailable")
		}

		res := router.Run(cmd.Context(), args[0], model.PromptKind(ocrKind))
		if err := writeIndented(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return eris.New(res.Error)
		}
		return nil
	},
}

func init() {
	ocrCmd.Flags().StringVar(&ocrKind, "kind", string(model.PromptGeneral), "prompt kind: rankings, trend, specs, metrics, general")
	rootCmd.AddCommand(ocrCmd)
}
