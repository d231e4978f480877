package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/use-agent/reviewcrawl/crawler"
)

type options struct {
	outputDir     string
	crawler       string
	all           bool
	configPath    string
	maxReviews    int
	maxReviewsSet bool
	snapshot      string

	// ids is resolved from crawler/all during validation.
	ids []string
}

func newRootCmd(runFn func(context.Context, *options) error) *cobra.Command {
	opts := &options{}
	choices := crawler.DefaultRegistry().IDs()

	cmd := &cobra.Command{
		Use:   "reviewcrawl -o DIR (-c CRAWLER | -a)",
		Short: "reviewcrawl collects movie reviews into per-site CSV checkpoints.",
		Long: "reviewcrawl drives a headless browser through review listings, " +
			"deduplicates what it sees and rewrites reviews_<Site>.csv in the " +
			"output directory every few dozen records and once more at the end.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.maxReviewsSet = cmd.Flags().Changed("max-reviews")
			return opts.validate(choices)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Past flag validation, errors are runtime failures, not misuse.
			cmd.SilenceUsage = true
			return runFn(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.outputDir, "output_dir", "o", "", "output directory for checkpoint files, e.g. ../../database")
	f.StringVarP(&opts.crawler, "crawler", "c", "", "crawler to run, one of: "+strings.Join(choices, ", "))
	f.BoolVarP(&opts.all, "all", "a", false, "run every registered crawler")
	f.StringVar(&opts.configPath, "config", "", "YAML file with per-site overrides (default $REVIEWCRAWL_CONFIG)")
	f.IntVar(&opts.maxReviews, "max-reviews", 0, "stop each crawler after this many reviews; 0 means no limit")
	f.StringVar(&opts.snapshot, "snapshot", "", "replay a saved HTML page instead of launching a browser")
	_ = cmd.MarkFlagRequired("output_dir")

	return cmd
}

func (o *options) validate(choices []string) error {
	if o.maxReviews < 0 {
		return fmt.Errorf("--max-reviews must not be negative")
	}
	switch {
	case o.all:
		o.ids = choices
	case o.crawler != "":
		for _, c := range choices {
			if c == o.crawler {
				o.ids = []string{c}
				return nil
			}
		}
		return fmt.Errorf("invalid crawler %q (choices: %s)", o.crawler, strings.Join(choices, ", "))
	default:
		return errors.New("no crawlers selected: pass -c CRAWLER or -a")
	}
	return nil
}
