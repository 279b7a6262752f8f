// Package textgen is the text-generation collaborator every role adapter
// calls. Providers (OpenAI-compatible HTTP, gRPC, mock, replay) sit behind
// the Service interface; pacing lives here too, never in the orchestrator.
package textgen

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// #endregion

// #region role

// Role is the closed set of roles that may call the service.
type Role string

const (
	RoleGenreVibe      Role = "genre_vibe"
	RolePitchGenerator Role = "pitch_generator"
	RoleCritic         Role = "critic"
	RoleImprover       Role = "improver"
	RoleVoter          Role = "voter"
	RoleTropeAnalyst   Role = "trope_analyst"
	RoleRecorder       Role = "recorder"
)

// Roles lists every role in pipeline order.
var Roles = []Role{
	RoleGenreVibe,
	RolePitchGenerator,
	RoleCritic,
	RoleImprover,
	RoleVoter,
	RoleTropeAnalyst,
	RoleRecorder,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// #endregion

// #region request-response

// Request is one role invocation.
type Request struct {
	Role        Role
	Input       map[string]any
	Constraints map[string]any
}

// Response is the raw service answer. OK=false means the provider produced
// nothing usable.
type Response struct {
	Output string
	OK     bool
}

// Service generates text for a role request.
type Service interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Closer is implemented by services holding a connection.
type Closer interface {
	Close() error
}

// JSONInput returns the request input normalised through JSON, so numbers
// are float64 and slices are []any.
func (r Request) JSONInput() (map[string]any, error) {
	return normalize(r.Input)
}

func normalize(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return out, nil
}

// #endregion

// #region prompt

// Prompt is the chat-style rendering of a Request for completion providers.
type Prompt struct {
	System string
	User   string
}

var systemPrompts = map[Role]string{
	RoleGenreVibe:      "You shape the tone and themes of a short story in a given subgenre.",
	RolePitchGenerator: "You write distinct, compelling short story pitches.",
	RoleCritic:         "You are a demanding fiction editor scoring story pitches.",
	RoleImprover:       "You revise story pitches to fix the weaknesses a critic named while keeping their strengths.",
	RoleVoter:          "You choose the single strongest story pitch from a shortlist.",
	RoleTropeAnalyst:   "You identify familiar tropes in a story pitch and suggest fresh twists.",
	RoleRecorder:       "You write a short prose summary of a finished story idea.",
}

// BuildPrompt renders a request as a system + user message pair.
func BuildPrompt(req Request) Prompt {
	var sb strings.Builder
	sb.WriteString("Input:\n")
	writeJSON(&sb, req.Input)
	if len(req.Constraints) > 0 {
		sb.WriteString("\nConstraints:\n")
		keys := make([]string, 0, len(req.Constraints))
		for k := range req.Constraints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %v\n", k, req.Constraints[k])
		}
	}
	sb.WriteString("\nRespond with a single JSON object and nothing else.")

	system := systemPrompts[req.Role]
	if system == "" {
		system = "You are a helpful creative writing assistant."
	}
	return Prompt{System: system, User: sb.String()}
}

func writeJSON(sb *strings.Builder, v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(sb, "%v\n", v)
		return
	}
	sb.Write(raw)
	sb.WriteString("\n")
}

// #endregion
