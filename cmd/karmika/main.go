// Karmika — personal karma classification and scoring engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "karmika",
	Short: "Karmika — classify daily actions and track your karma over time.",
	Long: `Karmika records short descriptions of personal actions, classifies each
one as good, bad, or neutral through a layered rule/LLM/heuristic pipeline,
and turns the resulting ledger into scores, behavioral patterns, habit
recommendations, and streaks.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, classifyCmd, seedCmd, reportCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
