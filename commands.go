package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aktagon/blog-writer/internal/catalog"
	"github.com/aktagon/blog-writer/internal/index"
)

func newTopicsCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List the topic pool and which topics were covered recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, log, err := setup(f)
			if err != nil {
				return err
			}
			defer log.Sync()

			cat, err := config.LoadCatalog()
			if err != nil {
				return err
			}
			history := index.NewStore(config.IndexPath()).Load()
			titles := history.RecentTitles(config.Settings.History.TitleWindow)
			selector := catalog.NewSelector(cat, config.SelectorOptions(), nil)

			printTopics(cmd.OutOrStdout(), cat.Topics, selector, titles)
			return nil
		},
	}
}

func newIndexCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "List generated posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, log, err := setup(f)
			if err != nil {
				return err
			}
			defer log.Sync()

			history := index.NewStore(config.IndexPath()).Load()
			if history.Status == index.StatusDegraded {
				return fmt.Errorf("index %s: %w", config.IndexPath(), history.Err)
			}
			printIndex(cmd.OutOrStdout(), history.Records)
			return nil
		},
	}
}

func printTopics(w io.Writer, topics []catalog.Topic, selector *catalog.Selector, recentTitles []string) {
	fresh := color.New(color.FgGreen).SprintFunc()
	recent := color.New(color.FgYellow).SprintFunc()
	category := color.New(color.FgCyan).SprintFunc()

	available := 0
	for _, t := range topics {
		status := fresh("available")
		if selector.IsRecent(t, recentTitles) {
			status = recent("recent   ")
		} else {
			available++
		}
		star := " "
		if t.Featured {
			star = "★"
		}
		fmt.Fprintf(w, "%s %s %-14s %s\n", status, star, category(t.Category), t.Text)
	}
	fmt.Fprintf(w, "\n%d of %d topics available\n", available, len(topics))
}

func printIndex(w io.Writer, records []index.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No posts yet")
		return
	}
	date := color.New(color.Faint).SprintFunc()
	category := color.New(color.FgCyan).SprintFunc()
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-14s %s\n", date(r.Date), category(r.Category), r.Title)
		fmt.Fprintf(w, "            %s\n", r.Filename)
	}
}
