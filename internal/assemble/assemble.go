// Package assemble concatenates selected modules into the combined
// instruction and scenario documents consumed by the guard hook.
package assemble

import (
	"strings"

	"github.com/guardkit/guardkit/internal/modules"
)

// Document headers. Kept deliberately plain: the documents are read by an
// LLM, not a human.
const (
	InstructionsHeader = "# TDD Guard Rules"
	ScenariosHeader    = "# TDD Guard Test Scenarios"
)

// SizeWarningThreshold is the instruction line count above which the CLI
// prints an advisory warning. Instruction quality degrades past this point;
// the file is still written.
const SizeWarningThreshold = 300

// Docs holds the assembled output.
type Docs struct {
	Instructions string
	// Scenarios is empty when no selected module ships scenario text.
	Scenarios string
	// LineCount is the newline count of Instructions. It is a cheap
	// approximation used only for the size warning, not a token count.
	LineCount int
}

// HasScenarios reports whether a scenario document was produced.
func (d Docs) HasScenarios() bool { return d.Scenarios != "" }

// Assemble builds the combined documents from modules in their given order.
// Callers pass the (priority, id)-sorted slice from the selection engine, so
// repeated runs over the same input yield byte-identical output.
func Assemble(mods []modules.Module) Docs {
	instructions := []string{InstructionsHeader, ""}
	scenarios := []string{ScenariosHeader, ""}
	haveScenarios := false

	for _, m := range mods {
		if body := instructionBody(m.Instructions); body != nil {
			instructions = append(instructions, body...)
			instructions = append(instructions, "")
		}
		if body := scenarioBody(m.Scenarios); body != nil {
			scenarios = append(scenarios, body...)
			scenarios = append(scenarios, "")
			haveScenarios = true
		}
	}

	docs := Docs{Instructions: strings.Join(instructions, "\n")}
	if haveScenarios {
		docs.Scenarios = strings.Join(scenarios, "\n")
	}
	docs.LineCount = strings.Count(docs.Instructions, "\n")
	return docs
}

// instructionBody strips the module title and priority-level heading,
// returning the lines from the first real "## " section onward. Modules with
// no section headings contribute nothing; their text is title-only.
func instructionBody(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "## Priority Level:") {
			return lines[i:]
		}
	}
	return nil
}

// scenarioBody strips the module title, returning lines from the first
// phase or test heading onward.
func scenarioBody(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "## Phase") || strings.HasPrefix(line, "### Test") {
			return lines[i:]
		}
	}
	return nil
}
