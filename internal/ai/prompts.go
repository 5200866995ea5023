package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mindflow/mindflow-ai/internal/graph"
)

// MaxTextLength caps user-supplied source text before prompting.
const MaxTextLength = 1_000_000

var scriptTagRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)

// SanitizeText strips script tags from user-supplied text before it is
// embedded in a prompt.
func SanitizeText(text string) string {
	return scriptTagRe.ReplaceAllString(text, "")
}

// ---------------------------------------------------------------------------
// Prompt builders
// ---------------------------------------------------------------------------

// BuildMindMapPrompt asks for a complete hierarchical mind map as a JSON
// object with nodes and edges.
func BuildMindMapPrompt(text string) string {
	var b strings.Builder
	b.WriteString(`You are a mind map generation expert. Based on the following text, generate a mind map in JSON format. The JSON must have 'nodes' and 'edges' properties.
Each node must have an 'id' (string), a 'position' ({x: number, y: number}), and a 'data' object.

The main subject of the text should be designated as the single root node. This root node must:
1. Have the type 'topic'.
2. Be positioned exactly at { "x": 0, "y": 0 }.
3. Have its 'label' clearly represent the main subject.

All other generated nodes must be descendants of this root node, forming a clear hierarchical tree structure.
- Position immediate children of the root node directly below it and spread them out horizontally to avoid overlap.
- Subsequent levels of nodes should also be positioned hierarchically below their parent nodes.
- Every node except the root must have a parent and be part of the hierarchy stemming from the root; no disconnected nodes.

For the 'data' object of each node (including the root):
- 'label': A concise string label for the concept.
- 'type': One of 'topic' (only for the root node), 'definition', 'explanation', 'critical-point', 'example'.
- 'details': An optional string; if provided, a very brief 1-2 sentence summary giving essential context for the label.

Each edge must have an 'id' (string), a 'source' (source node id as a string), and a 'target' (target node id as a string).
Ensure the output is a valid JSON object and nothing else. Do not add any commentary or wrap it in markdown backticks.

Here is the text:
---
`)
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}

// BuildExpansionPrompt asks for 2-3 child nodes elaborating on parent,
// connected to it by new edges, excluding the parent itself.
func BuildExpansionPrompt(parent graph.Node) string {
	return fmt.Sprintf(`You are a mind map generation expert. A user wants to expand a node in their existing mind map.
The parent node is:
Label: %q
Type: %q
ID: %q
Position: { "x": %g, "y": %g }

Based on this parent node, generate 2-3 new child nodes that elaborate on or break down the parent node's concept.
For each new child node, provide:
- 'id': A unique string ID (e.g., "%[3]s-child1", "%[3]s-child2"), different from any existing node ID.
- 'position': An {x: number, y: number} object placing the node hierarchically below or around the parent.
- 'data': An object with:
    - 'label': A concise string label for the new concept.
    - 'type': One of 'definition', 'explanation', 'critical-point', 'example'. Do not use 'topic' for child nodes.
    - 'details': An optional string of at most 1-2 short sentences.

Also generate new edges connecting the parent node to these new child nodes. Each edge needs:
- 'id': A unique string ID (e.g., "e-%[3]s-child1").
- 'source': %[3]q (the parent node's ID).
- 'target': The ID of the new child node.

Return the response as a valid JSON object with 'nodes' (the new child nodes only) and 'edges'.
Do not include the parent node in the 'nodes' array of your response.
Ensure the output is a valid JSON object and nothing else. Do not add any commentary or wrap it in markdown backticks.
`, parent.Label, string(parent.Category), parent.ID, parent.Position.X, parent.Position.Y)
}

// BuildQuizPrompt flattens the graph into a textual outline and asks for
// 3-5 quiz questions as a JSON array.
func BuildQuizPrompt(nodes []graph.Node, edges []graph.Edge) string {
	data := FlattenGraph(nodes, edges)
	return fmt.Sprintf(`You are an AI expert at creating educational quizzes. Based on the provided mind map structure and content, generate a quiz with 3-5 questions.

Mind Map Data:
---
%s
---

For each question, provide the following information in JSON format:
- "question": The text of the question (string).
- "type": Either "multiple-choice" or "true-false" (string).
- "options": An array of 3-4 strings if type is "multiple-choice". Omit for "true-false".
- "correctAnswer": The correct answer (string). For multiple-choice, one of the "options" entries. For true-false, "True" or "False".
- "explanation": An optional brief explanation for the answer (string).

Return the response as a valid JSON array of these question objects and nothing else. Do not add any commentary or wrap it in markdown backticks.
`, data)
}

// BuildSummaryPrompt asks for a short prose summary of the given nodes.
func BuildSummaryPrompt(nodes []graph.Node, title string) string {
	var content strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&content, "Node: %q (Type: %s)\n", n.Label, n.Category)
		if details := strings.TrimSpace(n.Details); details != "" {
			fmt.Fprintf(&content, "Details: %s\n\n", details)
		} else {
			content.WriteString("\n")
		}
	}

	about := ""
	if title != "" {
		about = fmt.Sprintf(" (related to %q)", title)
	}
	return fmt.Sprintf(`You are an expert at summarizing information. Based on the following content from a mind map%s, please provide a concise summary (1-3 paragraphs). Focus on the key concepts and their relationships as presented.

Content:
---
%s---
Summary:`, about, content.String())
}

// FlattenGraph renders nodes and connections as the plain-text outline used
// by the quiz prompt. Connections with a missing endpoint are skipped.
func FlattenGraph(nodes []graph.Node, edges []graph.Edge) string {
	byID := make(map[string]graph.Node, len(nodes))
	var b strings.Builder
	b.WriteString("Nodes:\n")
	for _, n := range nodes {
		byID[n.ID] = n
		fmt.Fprintf(&b, "- %s: %q (type: %s)\n", n.ID, n.Label, n.Category)
	}
	b.WriteString("\nConnections:\n")
	for _, e := range edges {
		src, okS := byID[e.Source]
		dst, okT := byID[e.Target]
		if okS && okT {
			fmt.Fprintf(&b, "- %q -> %q\n", src.Label, dst.Label)
		}
	}
	return b.String()
}
