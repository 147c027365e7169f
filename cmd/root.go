package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var captureDir string

var rootCmd = &cobra.Command{
	Use:   "fuzzysearch",
	Short: "Reverse image search against the FuzzySearch index",
	Long: `fuzzysearch computes perceptual fingerprints of local images and looks
them up in the FuzzySearch reverse image index, ranking the candidates by
Hamming distance. Fingerprints can also be cached and searched locally.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save raw FuzzySearch responses")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
