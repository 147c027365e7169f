package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/kozaktomas/fuzzysearch/internal/config"
	"github.com/kozaktomas/fuzzysearch/internal/database"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/kozaktomas/fuzzysearch/internal/ranking"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [file]",
	Short: "Look up an image in the FuzzySearch index",
	Long: `Look up an image (or a fingerprint given with --hash) and list the
candidates ordered by Hamming distance. Only close matches are shown unless
--all is given or nothing close was found.

Examples:
  fuzzysearch search cat.png
  fuzzysearch search --hash -6917529027641081856 --all
  fuzzysearch search cat.png --local`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("hash", "", "Search for this fingerprint instead of an image file")
	searchCmd.Flags().Uint64("threshold", 0, "Maximum distance of a close match (default from MATCH_THRESHOLD)")
	searchCmd.Flags().Bool("all", false, "Also show less relevant results")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
	searchCmd.Flags().Bool("local", false, "Search the local fingerprint cache instead of FuzzySearch")
	searchCmd.Flags().Int("limit", 0, "Maximum number of local candidates")
}

// searchOutput is the JSON form of a search.
type searchOutput struct {
	Hash       int64              `json:"hash"`
	Hex        string             `json:"hex"`
	Threshold  uint64             `json:"threshold"`
	Count      int                `json:"count"`
	GoodCount  int                `json:"good_count"`
	BadCount   int                `json:"bad_count"`
	DurationMS int64              `json:"duration_ms"`
	Files      []fuzzysearch.File `json:"files,omitempty"`
	Local      []database.Entry   `json:"local,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Load()

	threshold := mustGetUint64(cmd, "threshold")
	if !cmd.Flags().Changed("threshold") {
		threshold = uint64(cfg.FuzzySearch.Threshold)
	}
	local := mustGetBool(cmd, "local")

	var store *database.Store
	if local {
		var err error
		if store, err = openCache(ctx, cfg); err != nil {
			return err
		}
		defer store.Close()
	}

	fp, err := resolveQuery(ctx, cmd, args, cfg, store)
	if err != nil {
		return err
	}

	if local {
		return runLocalSearch(ctx, cmd, cfg, store, fp, threshold)
	}

	client, err := newClient(cfg, threshold)
	if err != nil {
		return err
	}
	result, err := client.Lookup(ctx, fp)
	if err != nil {
		return describeLookupError(err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(searchOutput{
			Hash:       int64(fp),
			Hex:        fp.Hex(),
			Threshold:  threshold,
			Count:      result.Ranked.Count,
			GoodCount:  result.Ranked.GoodCount,
			BadCount:   result.Ranked.BadCount,
			DurationMS: result.Duration.Milliseconds(),
			Files:      filesOf(result.Ranked.Visible(mustGetBool(cmd, "all"))),
		})
	}

	printRemoteResults(&cfg.Display, fp, result.Ranked, result.Duration, mustGetBool(cmd, "all"))
	return nil
}

// resolveQuery returns the fingerprint from --hash or by hashing the file argument.
func resolveQuery(ctx context.Context, cmd *cobra.Command, args []string, cfg *config.Config, store *database.Store) (fingerprint.Fingerprint, error) {
	if s := mustGetString(cmd, "hash"); s != "" {
		if len(args) > 0 {
			return 0, errors.New("give either a file or --hash, not both")
		}
		return fingerprint.ParseFingerprint(s)
	}
	if len(args) == 0 {
		return 0, errors.New("an image file or --hash is required")
	}
	return hashFile(ctx, newWorker(cfg), store, args[0])
}

func describeLookupError(err error) error {
	if status, ok := fuzzysearch.IsRemoteRejected(err); ok {
		return fmt.Errorf("FuzzySearch rejected the request (HTTP %d): %w", status, err)
	}
	if fuzzysearch.IsTransport(err) {
		return fmt.Errorf("could not reach FuzzySearch: %w", err)
	}
	return err
}

func filesOf(matches []ranking.Match[fuzzysearch.File]) []fuzzysearch.File {
	files := make([]fuzzysearch.File, len(matches))
	for i, m := range matches {
		files[i] = m.Item
	}
	return files
}

// qualityColor picks the label color for a match.
func qualityColor(q ranking.Quality) *color.Color {
	switch q {
	case ranking.QualityPerfect:
		return color.New(color.FgGreen, color.Bold)
	case ranking.QualityGood:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgRed)
	}
}

func printSummary(fp fingerprint.Fingerprint, count int, duration time.Duration) {
	fmt.Printf("Hash %d (%s)\n", fp, fp.Hex())
	if duration > 0 {
		fmt.Printf("%d results in %d ms\n\n", count, duration.Milliseconds())
	} else {
		fmt.Printf("%d results\n\n", count)
	}
}

func printRemoteResults(display *config.DisplayConfig, fp fingerprint.Fingerprint, ranked ranking.ResultSet[fuzzysearch.File], duration time.Duration, showAll bool) {
	printSummary(fp, ranked.Count, duration)

	if ranked.Count == 0 {
		color.New(color.FgRed).Println("No results found.")
		return
	}
	if ranked.GoodCount == 0 {
		color.New(color.FgYellow).Println("No close matches. Showing all results.")
	}

	faint := color.New(color.Faint)
	for i, m := range ranked.Visible(showAll) {
		if i == ranked.GoodCount && ranked.GoodCount > 0 {
			faint.Println("--- less relevant results ---")
		}
		f := m.Item
		qualityColor(m.Quality()).Printf("%-15s", m.Quality())
		if m.Known {
			fmt.Printf(" distance %-3d ", m.Distance)
		} else {
			faint.Printf(" distance ?   ")
		}
		fmt.Printf("%-12s %s\n", f.SiteName(), display.Link(f.Link(), f.PrettyLink()))
		faint.Printf("                by %s\n", f.ArtistNames())
	}

	if !showAll && ranked.HasAlternatives() {
		faint.Printf("\n%d less relevant results hidden, use --all to show them\n", ranked.BadCount)
	}
}

func runLocalSearch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, store *database.Store, fp fingerprint.Fingerprint, threshold uint64) error {
	idx, err := database.OpenLocalIndex(ctx, store, cfg.Storage.IndexPath)
	if err != nil {
		return err
	}

	ranked, err := idx.Search(fp, mustGetInt(cmd, "limit"), threshold)
	if err != nil && !errors.Is(err, database.ErrIndexEmpty) {
		return err
	}
	showAll := mustGetBool(cmd, "all")

	if mustGetBool(cmd, "json") {
		visible := ranked.Visible(showAll)
		entries := make([]database.Entry, len(visible))
		for i, m := range visible {
			entries[i] = m.Item
		}
		return outputJSON(searchOutput{
			Hash:      int64(fp),
			Hex:       fp.Hex(),
			Threshold: threshold,
			Count:     ranked.Count,
			GoodCount: ranked.GoodCount,
			BadCount:  ranked.BadCount,
			Local:     entries,
		})
	}

	printSummary(fp, ranked.Count, 0)
	if ranked.Count == 0 {
		color.New(color.FgRed).Println("Local cache is empty. Run 'fuzzysearch index <dir>' first.")
		return nil
	}
	for _, m := range ranked.Visible(showAll) {
		qualityColor(m.Quality()).Printf("%-15s", m.Quality())
		fmt.Printf(" distance %-3d %s\n", m.Distance, m.Item.Path)
	}
	return nil
}
