package reasoning

import (
	"fmt"
	"strings"

	"github.com/cloudtriage/cloudtriage/internal/dispatch"
	"github.com/cloudtriage/cloudtriage/internal/session"
)

// systemPrompt instructs the model to investigate systematically and to
// always act through exactly one of the offered tools.
func systemPrompt(actions []dispatch.Definition) string {
	var b strings.Builder
	b.WriteString("You are an expert cloud debugging assistant. Analyze the reported error and ")
	b.WriteString("systematically investigate its root cause using the available diagnostic actions.\n\n")

	b.WriteString("Available diagnostic actions:\n")
	for _, def := range actions {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}

	b.WriteString(`
Approach:
1. Start from the error context and identify the resources likely involved.
2. Check the health and configuration of key resources before anything else.
3. Query logs when they might explain the failure.
4. Check permissions when the error could be access related.
5. Analyze the error text for known failure patterns.
6. Finish with concrete, actionable remediation steps.

Rules:
- Call exactly one tool per turn.
- Explain your reasoning briefly when invoking a diagnostic action.
- When you have found the root cause, call ` + toolConclude + ` with clear remediation steps.
- If you need information only the user has, call ` + toolRequestInput + `.
- If the investigation cannot make further progress, call ` + toolAbandon + ` and say why.
`)
	return b.String()
}

// userPrompt renders the error, the supplied context, and the exploration
// history so a resumed continuation sees everything learned so far.
func userPrompt(s *session.DebugSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error under investigation:\n%s\n", s.ErrorDescription)

	if len(s.Context.EnvironmentHints) > 0 {
		b.WriteString("\nEnvironment:\n")
		for key, value := range s.Context.EnvironmentHints {
			fmt.Fprintf(&b, "- %s: %s\n", key, value)
		}
	}

	if len(s.Context.EvidenceItems) > 0 {
		b.WriteString("\nSupplied evidence:\n")
		for _, item := range s.Context.EvidenceItems {
			fmt.Fprintf(&b, "--- %s (%s)\n%s\n", item.Path, item.Relevance, item.Content)
		}
	}

	if len(s.History) > 0 {
		b.WriteString("\nInvestigation so far, in order:\n")
		for _, entry := range s.History {
			status := "ok"
			if !entry.Success {
				status = "failed:" + entry.ErrorKind
			}
			switch entry.Kind {
			case session.EntryAction:
				fmt.Fprintf(&b, "- [%s %s] %s\n", entry.Action, status, entry.Summary)
			default:
				fmt.Fprintf(&b, "- [%s] %s\n", entry.Kind, entry.Summary)
			}
		}
	}

	b.WriteString("\nDecide the single next step.")
	return b.String()
}
