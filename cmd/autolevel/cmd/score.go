package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rustyeddy/autolevel/confidence"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score weighted trade signals",
	Long: `Score a set of votes into a confidence value and an action
(observe, watch, execute). Votes are read from a YAML or JSON file:

  votes:
    - {source: trend, direction: buy, weight: 2, confidence: 0.8}
    - {source: momentum, direction: sell, weight: 1, confidence: 0.5}
  news: medium
  session: london

Example:
  autolevel score --file votes.yaml --session asia`,
	RunE: runScore,
}

var (
	scoreFile    string
	scoreNews    string
	scoreSession string
	scoreJSON    bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVarP(&scoreFile, "file", "f", "", "votes file (required)")
	scoreCmd.Flags().StringVar(&scoreNews, "news", "", "news impact override (none, low, medium, high)")
	scoreCmd.Flags().StringVar(&scoreSession, "session", "", "session override (asia, london, newyork, overlap, offhours)")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "print JSON")
	scoreCmd.MarkFlagRequired("file")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(scoreFile)
	if err != nil {
		return fmt.Errorf("read votes: %w", err)
	}
	var in confidence.Input
	if err := yaml.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse votes: %w", err)
	}

	if cmd.Flags().Changed("news") {
		in.News = confidence.NewsImpact(scoreNews)
	}
	if cmd.Flags().Changed("session") {
		in.Session = confidence.Session(scoreSession)
	}
	if in.News, err = confidence.ParseNews(string(in.News)); err != nil {
		return err
	}
	if in.Session, err = confidence.ParseSession(string(in.Session)); err != nil {
		return err
	}
	for i, v := range in.Votes {
		if in.Votes[i].Direction, err = confidence.ParseDirection(string(v.Direction)); err != nil {
			return fmt.Errorf("vote %d (%s): %w", i, v.Source, err)
		}
	}

	sig := confidence.Score(in, cfg.Confidence)

	w := cmd.OutOrStdout()
	if scoreJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sig)
	}
	fmt.Fprintf(w, "Score: %.1f (raw %.1f, news -%.0f, session -%.0f)\n",
		sig.Score, sig.RawScore, sig.NewsPenalty, sig.SessionPenalty)
	fmt.Fprintf(w, "Direction: %s\n", sig.Direction)
	fmt.Fprintf(w, "Action: %s (watch >= %.0f, execute >= %.0f)\n", sig.Action, cfg.Confidence.Watch, cfg.Confidence.Execute)
	return nil
}
