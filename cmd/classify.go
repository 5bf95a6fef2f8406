package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evdata-cli/internal/classify"
	"github.com/sells-group/evdata-cli/internal/extract"
	"github.com/sells-group/evdata-cli/internal/model"
)

var (
	classifySummary  string
	extractSummary   string
	extractPublished string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <title>",
	Short: "Classify one article title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClassifier()
		if err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), c.Classify(args[0], classifySummary))
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <title>",
	Short: "Classify and extract one article title",
	Long:  "Runs the classifier and the table extractor over a title as the backfill would, without OCR or submission.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClassifier()
		if err != nil {
			return err
		}

		a := model.Article{Title: args[0], Summary: extractSummary}
		if extractPublished != "" {
			ts, err := time.Parse("2006-01-02", extractPublished)
			if err != nil {
				return eris.Wrapf(err, "parse --published %q", extractPublished)
			}
			a.PublishedAt = &ts
		}

		class := c.Classify(a.Title, a.Summary)
		out := extractOutput{Classification: class}
		if !class.IsSkip() {
			out.Extraction = extract.New().Extract(extract.InputFromArticle(a, class))
		}
		return writeIndented(cmd.OutOrStdout(), out)
	},
}

type extractOutput struct {
	Classification model.Classification    `json:"classification"`
	Extraction     *model.ExtractionResult `json:"extraction"`
}

func init() {
	classifyCmd.Flags().StringVar(&classifySummary, "summary", "", "article summary text")
	extractCmd.Flags().StringVar(&extractSummary, "summary", "", "article summary text")
	extractCmd.Flags().StringVar(&extractPublished, "published", "", "publication date (YYYY-MM-DD) used to infer the year")
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(extractCmd)
}

func newClassifier() (*classify.Classifier, error) {
	pt, err := classify.DefaultPatterns()
	if err != nil {
		return nil, eris.Wrap(err, "load classifier patterns")
	}
	return classify.New(pt), nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
