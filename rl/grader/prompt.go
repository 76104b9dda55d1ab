package grader

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the grading prompt for the oracle. It is
// deterministic for identical inputs and instructs the oracle to answer
// with a single JSON object of the form {"score": <0..1>}. The problem
// statement is included so grading is context-aware, not code-only.
func BuildPrompt(statement, code string, rubric Rubric) string {
	var sb strings.Builder

	sb.WriteString("You are a strict code-quality grader.\n\n")
	sb.WriteString("You will be given a programming problem and a candidate solution. ")
	sb.WriteString("Grade how well the solution is designed on a continuous scale from 0.0 to 1.0.\n\n")

	sb.WriteString("Score criteria (equally weighted):\n")
	for _, c := range rubric.Criteria {
		sb.WriteString(fmt.Sprintf("- %s (%s)\n", c.Name, c.Description))
	}

	sb.WriteString("\nOutput format requirements:\n")
	sb.WriteString("- Respond with *only* a single JSON object.\n")
	sb.WriteString("- The JSON must be exactly of the form:\n")
	sb.WriteString("  {\"score\": <float between 0.0 and 1.0>}\n")
	sb.WriteString("- Do not include any explanations, markdown, or extra keys.\n")

	if strings.TrimSpace(statement) != "" {
		sb.WriteString("\nProblem:\n")
		sb.WriteString(strings.TrimSpace(statement))
		sb.WriteString("\n")
	}

	sb.WriteString("\nCode to grade:\n```\n")
	sb.WriteString(strings.TrimRight(code, "\n"))
	sb.WriteString("\n```\n")

	return sb.String()
}
