package router

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/theredstring/redstring-sub011/pkg/llmprovider"
)

// Intent tags recognized in PlannerResult.Intent (spec.md §4.6).
const (
	IntentQA          = "qa"
	IntentCreateGraph = "create_graph"
	IntentCreateNode  = "create_node"
	IntentAnalyze     = "analyze"
)

// ErrMissingAuthorization is returned when an LLM-bound endpoint lacks an
// Authorization header (spec.md §4.6 failure modes).
var ErrMissingAuthorization = errors.New("router: missing authorization")

// PlannerNode is one node request inside a graphSpec.
type PlannerNode struct {
	Name  string  `json:"name"`
	Color string  `json:"color,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// PlannerEdge is one edge request inside a graphSpec.
type PlannerEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// PlannerGraphSpec carries a batch of nodes/edges to materialize.
type PlannerGraphSpec struct {
	Nodes []PlannerNode `json:"nodes"`
	Edges []PlannerEdge `json:"edges"`
}

// PlannerToolCall is a tool the planner wants invoked directly.
type PlannerToolCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// PlannerResult is the strict JSON shape the planner call asks the model
// for (spec.md §4.6).
type PlannerResult struct {
	Intent    string             `json:"intent"`
	Response  string             `json:"response"`
	Questions []string           `json:"questions,omitempty"`
	Graph     struct {
		Name string `json:"name,omitempty"`
	} `json:"graph,omitempty"`
	Node *PlannerNode `json:"node,omitempty"`
	GraphSpec *PlannerGraphSpec `json:"graphSpec,omitempty"`
	ToolCalls []PlannerToolCall  `json:"toolCalls,omitempty"`
}

var jsonBlockRegex = regexp.MustCompile(`(?s)\{.*\}`)

// plannerCall asks the model for strict JSON; on parse failure, retries
// once with a stricter instruction; on a second failure, falls back to a
// heuristic classifier (spec.md §4.6 "Planner call").
func (r *Router) plannerCall(ctx context.Context, completer llmprovider.Completer, message, systemPrompt, model string) (*PlannerResult, error) {
	if model == "" {
		model = r.defaultModel
	}
	sys := hiddenSystemPrompt
	if systemPrompt != "" {
		sys = sys + "\n" + systemPrompt
	}

	plan, err := r.tryParsePlan(ctx, completer, message, sys, model, plannerInstruction)
	if err == nil {
		return plan, nil
	}

	plan, err = r.tryParsePlan(ctx, completer, message, sys, model, strictPlannerInstruction)
	if err == nil {
		return plan, nil
	}

	return heuristicClassify(message), nil
}

const plannerInstruction = `Return STRICT JSON only, no markdown fences, matching:
{"intent":"qa|create_graph|create_node|analyze","response":"short text","questions":[],"graph":{"name":""},"node":{"name":"","x":0,"y":0,"color":""},"graphSpec":{"nodes":[{"name":"","color":"","x":0,"y":0}],"edges":[{"source":"","target":"","type":""}]},"toolCalls":[{"name":"","args":{}}]}`

const strictPlannerInstruction = plannerInstruction + `
Your previous response could not be parsed as JSON. Return ONLY the JSON object, nothing else.`

func (r *Router) tryParsePlan(ctx context.Context, completer llmprovider.Completer, message, sys, model, instruction string) (*PlannerResult, error) {
	text, err := completer.Complete(ctx, llmprovider.CompletionRequest{
		Model:        model,
		SystemPrompt: sys + "\n" + instruction,
		Message:      message,
		MaxTokens:    1024,
		Temperature:  0.3,
	})
	if err != nil {
		return nil, err
	}
	return parsePlan(text)
}

// parsePlan extracts and decodes the JSON object from a model reply,
// tolerating surrounding prose or markdown fences.
func parsePlan(text string) (*PlannerResult, error) {
	candidate := strings.TrimSpace(text)
	candidate = strings.TrimPrefix(candidate, "```json")
	candidate = strings.TrimPrefix(candidate, "```")
	candidate = strings.TrimSuffix(candidate, "```")
	candidate = strings.TrimSpace(candidate)

	if !strings.HasPrefix(candidate, "{") {
		if m := jsonBlockRegex.FindString(candidate); m != "" {
			candidate = m
		}
	}

	var plan PlannerResult
	if err := json.Unmarshal([]byte(candidate), &plan); err != nil {
		return nil, err
	}
	if plan.Intent == "" {
		return nil, errors.New("router: planner JSON missing intent")
	}
	return &plan, nil
}

var verbSet = []string{"add", "create", "make", "place", "insert", "spawn", "new"}
var nounSet = []string{"graph", "perspective", "view", "node", "concept", "thing", "idea"}

// heuristicClassify is the fallback classifier used when the model never
// returns parseable JSON (spec.md §4.6 "fall back to a heuristic
// classifier").
func heuristicClassify(message string) *PlannerResult {
	lower := strings.ToLower(message)
	hasVerb := containsAny(lower, verbSet)
	hasGraphNoun := strings.Contains(lower, "graph") || strings.Contains(lower, "perspective") || strings.Contains(lower, "view")
	hasNodeNoun := strings.Contains(lower, "node") || strings.Contains(lower, "concept") || strings.Contains(lower, "thing") || strings.Contains(lower, "idea")

	switch {
	case hasVerb && hasGraphNoun:
		return &PlannerResult{Intent: IntentCreateGraph, Response: "Okay, creating that."}
	case hasVerb && hasNodeNoun:
		return &PlannerResult{Intent: IntentCreateNode, Response: "Okay, adding that."}
	default:
		return &PlannerResult{Intent: IntentQA, Response: ""}
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// replyCall asks for a concise non-empty sentence; on empty reply, retries
// once with lowered max_tokens/temperature; on a second empty reply,
// returns the safe placeholder (spec.md §4.6 "Reply call").
func (r *Router) replyCall(ctx context.Context, completer llmprovider.Completer, message, systemPrompt, model string) (string, error) {
	if model == "" {
		model = r.defaultModel
	}
	sys := hiddenSystemPrompt
	if systemPrompt != "" {
		sys = sys + "\n" + systemPrompt
	}

	text, err := llmprovider.CompleteWithRetry(ctx, completer, llmprovider.CompletionRequest{
		Model:        model,
		SystemPrompt: sys,
		Message:      message,
		MaxTokens:    1024,
		Temperature:  0.7,
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return placeholderReply, nil
	}
	return text, nil
}
