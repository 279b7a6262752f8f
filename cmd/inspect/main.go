package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/idea-forge/internal/history"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to ideaforge.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/ideaforge.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	store, err := history.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		err = runDetailMode(store, *runID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	Genre     string `json:"genre"`
	Category  string `json:"category"`
	Winner    string `json:"winner,omitempty"`
	Failure   string `json:"failure,omitempty"`
	DocPath   string `json:"doc_path,omitempty"`
	StartedAt string `json:"started_at"`
}

func runListMode(store *history.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[i] = listRow{
			RunID:     r.RunID,
			Status:    r.Status,
			Genre:     r.Genre,
			Category:  string(r.Category),
			Winner:    r.WinnerTitle,
			DocPath:   r.DocPath,
			StartedAt: r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
		if r.FailureStage != "" {
			rows[i].Failure = r.FailureStage + "/" + r.FailureReason
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-10s  %-7s  %-24s  %-8s  %-28s  %s\n", "Run", "Status", "Genre", "Category", "Winner / Failure", "Started")
	fmt.Printf("%-10s+-%-7s+-%-24s+-%-8s+-%-28s+-%s\n",
		"----------", "-------", "------------------------", "--------", "----------------------------", "--------------------")
	for _, r := range rows {
		outcome := r.Winner
		if r.Failure != "" {
			outcome = r.Failure
		}
		fmt.Printf("%-10s  %-7s  %-24s  %-8s  %-28s  %s\n",
			shortID(r.RunID), r.Status, clip(r.Genre, 24), r.Category, clip(outcome, 28), r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Failure   string          `json:"failure,omitempty"`
	Genre     string          `json:"genre"`
	Category  string          `json:"category"`
	Drawn     bool            `json:"genre_drawn"`
	Tone      string          `json:"tone"`
	Themes    []string        `json:"themes"`
	WinnerID  string          `json:"winner_id,omitempty"`
	DocPath   string          `json:"doc_path,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Lineages  []lineageDetail `json:"lineages"`
	Tropes    []string        `json:"tropes,omitempty"`
	Decisions []string        `json:"decisions"`
}

type lineageDetail struct {
	Seq     int           `json:"seq"`
	State   string        `json:"state"`
	Forced  bool          `json:"forced_accept"`
	Outcome string        `json:"decision,omitempty"`
	Pitches []pitchDetail `json:"pitches"`
}

type pitchDetail struct {
	ID        string   `json:"id"`
	Revision  int      `json:"revision"`
	Title     string   `json:"title"`
	Composite *float64 `json:"composite,omitempty"`
	Winner    bool     `json:"winner,omitempty"`
}

func runDetailMode(store *history.Store, runID string, jsonOut bool) error {
	rec, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	composites := make(map[string]float64)
	for _, sc := range rec.Scores {
		composites[sc.PitchID] = sc.Composite
	}
	byID := make(map[string]pitch.Pitch)
	for _, p := range rec.Pitches {
		byID[p.ID] = p
	}

	out := detailOutput{
		RunID:    rec.RunID,
		Status:   rec.Status,
		Genre:    rec.Genre.Genre,
		Category: string(rec.Genre.Category),
		Drawn:    rec.GenreDrawn,
		Tone:     rec.Genre.Tone,
		Themes:   rec.Genre.Themes,
		WinnerID: rec.WinnerID,
		DocPath:  rec.DocPath,
		Summary:  rec.Summary,
		Tropes:   rec.Tropes.DetectedTropes,
	}
	if rec.FailureStage != "" {
		out.Failure = rec.FailureStage + "/" + rec.FailureReason
	}
	for _, lin := range rec.Lineages {
		ld := lineageDetail{Seq: lin.Seq, State: string(lin.State), Forced: lin.ForcedAccept, Outcome: lin.Decision}
		for _, id := range lin.PitchIDs {
			p := byID[id]
			pd := pitchDetail{ID: id, Revision: p.RevisionNumber, Title: p.Draft.Title, Winner: id == rec.WinnerID}
			if c, ok := composites[id]; ok {
				pd.Composite = &c
			}
			ld.Pitches = append(ld.Pitches, pd)
		}
		out.Lineages = append(out.Lineages, ld)
	}
	for _, d := range rec.Decisions {
		out.Decisions = append(out.Decisions, fmt.Sprintf("[%s] %s: %s", d.Stage, d.Decision, d.Reason))
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:      %s\n", out.RunID)
	fmt.Printf("Status:   %s\n", out.Status)
	if out.Failure != "" {
		fmt.Printf("Failure:  %s\n", out.Failure)
	}
	fmt.Printf("Genre:    %s (%s)\n", out.Genre, out.Category)
	fmt.Printf("Tone:     %s\n", out.Tone)
	fmt.Printf("Themes:   %s\n", strings.Join(out.Themes, ", "))
	if out.DocPath != "" {
		fmt.Printf("Document: %s\n", out.DocPath)
	}

	fmt.Printf("\nLineages:\n")
	for _, ld := range out.Lineages {
		forced := ""
		if ld.Forced {
			forced = " (forced)"
		}
		fmt.Printf("  #%d %s%s\n", ld.Seq, ld.State, forced)
		for _, pd := range ld.Pitches {
			score := "—"
			if pd.Composite != nil {
				score = fmt.Sprintf("%.2f", *pd.Composite)
			}
			mark := " "
			if pd.Winner {
				mark = "*"
			}
			fmt.Printf("    %s r%d  %6s  %s\n", mark, pd.Revision, score, pd.Title)
		}
	}

	if len(out.Tropes) > 0 {
		fmt.Printf("\nTropes: %s\n", strings.Join(out.Tropes, ", "))
	}
	fmt.Printf("\nDecisions:\n")
	for _, d := range out.Decisions {
		fmt.Printf("  %s\n", d)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// #endregion output
