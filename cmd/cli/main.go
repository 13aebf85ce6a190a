package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/jlaasanen/dealflow/internal/db"
	"github.com/jlaasanen/dealflow/internal/repositories"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var sqliteURL string

func init() {
	// The .env file is optional for the CLI, it only holds the database path.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defaultURL := os.Getenv("SQLITE_URL")
	if defaultURL == "" {
		defaultURL = "./dealflow.sqlite"
	}
	rootCmd.PersistentFlags().StringVar(&sqliteURL, "sqlite-url", defaultURL, "SQLite URL")
	rootCmd.AddCommand(pointsCmd)
	rootCmd.AddCommand(detailsCmd)
}

var rootCmd = &cobra.Command{
	Use:  "dealflow-cli",
	Long: `Command line utilities for inspecting the dealflow bot's database.`,
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Print the member incentive point leaderboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbs, logger, err := open()
		if err != nil {
			return err
		}
		defer func() { _ = dbs.Close() }()

		members, err := repositories.NewMemberRepository(dbs, logger).Leaderboard(cmd.Context())
		if err != nil {
			return err
		}
		if len(members) == 0 {
			cmd.Println("No member points recorded yet.")
			return nil
		}
		for _, member := range members {
			cmd.Printf("%s: %d points\n", member.Name, member.Points)
		}
		return nil
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details <idea_id>",
	Short: "Print the full record of an investment idea",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ideaID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid idea id %q", args[0])
		}

		dbs, logger, err := open()
		if err != nil {
			return err
		}
		defer func() { _ = dbs.Close() }()

		idea, err := repositories.NewIdeaRepository(dbs, logger).Get(cmd.Context(), ideaID)
		if err != nil {
			return err
		}
		cmd.Printf("Idea ID: %d\n", idea.ID)
		cmd.Printf("Topic: %s\n", idea.Topic)
		cmd.Printf("Submitted by: %s\n", idea.SubmitterName)
		cmd.Printf("Status: %s\n", idea.Status)
		cmd.Printf("Score: %s\n", strconv.FormatFloat(idea.EvaluationScore, 'f', -1, 64))
		cmd.Printf("Research Summary: %s\n", idea.ResearchSummary)
		cmd.Printf("Thesis: %s\n", idea.Thesis)
		cmd.Printf("Risk Assessment: %s\n", idea.RiskAssessment)
		cmd.Printf("Recommendations: %s\n", idea.Recommendations)
		return nil
	},
}

func open() (*db.Database, *slog.Logger, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	dbs, err := db.New(sqliteURL)
	if err != nil {
		return nil, nil, err
	}
	return dbs, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
