package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockService answers every role with deterministic, well-formed JSON. It
// never calls out and is meant for offline runs and demos.
type MockService struct{}

// Generate builds a canned answer from the request input.
func (MockService) Generate(_ context.Context, req Request) (Response, error) {
	in, err := req.JSONInput()
	if err != nil {
		return Response{}, err
	}
	var out any
	switch req.Role {
	case RoleGenreVibe:
		out = map[string]any{
			"tone":   "wistful",
			"themes": []string{"memory", "belonging", "the cost of progress"},
		}
	case RolePitchGenerator:
		out = map[string]any{"pitches": mockPitches(in)}
	case RoleCritic:
		out = mockCritique(str(in["title"]), int(num(in["revision_number"])))
	case RoleImprover:
		title := str(in["title"])
		out = map[string]any{
			"title":    title,
			"hook":     "Sharper: " + str(in["hook"]),
			"concept":  str(in["concept"]) + " The stakes are now personal.",
			"conflict": str(in["conflict"]),
			"twist":    str(in["twist"]),
		}
	case RoleVoter:
		out = mockVote(in)
	case RoleTropeAnalyst:
		out = map[string]any{
			"detected_tropes": []string{"The Chosen One", "Ancient Prophecy"},
			"suggested_twists": map[string]string{
				"The Chosen One":   "The chosen one is chosen by a committee that got it wrong.",
				"Ancient Prophecy": "The prophecy was written last week as a prank.",
			},
		}
	case RoleRecorder:
		out = map[string]any{"summary": fmt.Sprintf("%s follows a %s story shaped by its themes.", str(in["title"]), str(in["genre"]))}
	default:
		return Response{OK: false}, nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return Response{}, err
	}
	return Response{Output: string(raw), OK: true}, nil
}

func mockPitches(in map[string]any) []map[string]string {
	n := int(num(in["count"]))
	if n <= 0 {
		n = 3
	}
	genre := str(in["genre"])
	var out []map[string]string
	for i := 1; i <= n; i++ {
		out = append(out, map[string]string{
			"title":    fmt.Sprintf("%s Story %d", genre, i),
			"hook":     fmt.Sprintf("In a %s world, someone must choose what to forget (%d).", strings.ToLower(genre), i),
			"concept":  fmt.Sprintf("A %s tale about %s.", str(in["tone"]), joinAny(in["themes"])),
			"conflict": "Duty against desire.",
			"twist":    "The narrator is the thing being remembered.",
		})
	}
	return out
}

func mockCritique(title string, revision int) map[string]any {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	base := float64(h.Sum32()%5) + 4 // 4..8
	base += float64(revision)
	if base > 10 {
		base = 10
	}
	return map[string]any{
		"scores": map[string]float64{
			"originality":       base,
			"emotional_clarity": base,
			"genre_fit":         base,
			"uniqueness":        base,
		},
		"rationale": fmt.Sprintf("%q reads at %.0f/10.", title, base),
	}
}

func mockVote(in map[string]any) map[string]any {
	cands, _ := in["candidates"].([]any)
	best := ""
	bestScore := -1.0
	for _, c := range cands {
		m, _ := c.(map[string]any)
		if s := num(m["composite"]); s > bestScore {
			bestScore = s
			best = str(m["id"])
		}
	}
	return map[string]any{"winner_id": best, "rationale": "Highest composite on the shortlist."}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

func joinAny(v any) string {
	items, _ := v.([]any)
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, str(it))
	}
	return strings.Join(parts, ", ")
}
