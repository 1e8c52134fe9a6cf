// Package prompt turns raw instructions into the exact text a model should
// see. Formatting is pure and deterministic so the boundary can be inverted
// when the backend returns the full accumulated decode.
package prompt

import "strings"

// Template selects a formatting rule applied to an incoming instruction.
type Template string

const (
	// TemplateRaw passes the instruction through verbatim. It defines no
	// input slot.
	TemplateRaw Template = "raw"
	// TemplateInstruction wraps the instruction in an instruction-following
	// layout with an optional input section and a trailing response cue.
	TemplateInstruction Template = "instruction"
)

const (
	preamble = "Below is an instruction that describes a task. " +
		"Write a response that appropriately completes the request."
	preambleWithInput = "Below is an instruction that describes a task, " +
		"paired with an input that provides further context. " +
		"Write a response that appropriately completes the request."
	instructionHeader = "### Instruction:"
	inputHeader       = "### Input:"
	// ResponseCue marks where generation begins. Format emits nothing after it.
	ResponseCue = "### Response:"
)

// Parse maps a wire-level template name to a Template. Empty input returns
// ok=false so callers can fall back to a configured default.
func Parse(name string) (Template, bool) {
	switch name {
	case string(TemplateRaw):
		return TemplateRaw, true
	case string(TemplateInstruction):
		return TemplateInstruction, true
	default:
		return "", false
	}
}

// Format renders instruction (and optional input) under the given template.
// Same inputs always yield the identical string.
func Format(instruction, input string, tmpl Template) (string, error) {
	switch tmpl {
	case TemplateRaw:
		if input != "" {
			return "", errInvalidTemplateUsage{tmpl: tmpl, reason: "template defines no input slot"}
		}
		return instruction, nil
	case TemplateInstruction:
		var b strings.Builder
		if input != "" {
			b.WriteString(preambleWithInput)
		} else {
			b.WriteString(preamble)
		}
		b.WriteString("\n\n")
		b.WriteString(instructionHeader)
		b.WriteString("\n")
		b.WriteString(instruction)
		b.WriteString("\n\n")
		if input != "" {
			b.WriteString(inputHeader)
			b.WriteString("\n")
			b.WriteString(input)
			b.WriteString("\n\n")
		}
		b.WriteString(ResponseCue)
		b.WriteString("\n")
		return b.String(), nil
	default:
		return "", errInvalidTemplateUsage{tmpl: tmpl, reason: "unknown template"}
	}
}

// ExtractResponse strips everything up to and including the response cue from
// a full accumulated decode, along with decode artifacts some tokenizers
// leave behind (a leading pad token, the end-of-sequence marker).
func ExtractResponse(full string) string {
	out := full
	if idx := strings.Index(out, ResponseCue); idx >= 0 {
		out = out[idx+len(ResponseCue):]
	}
	out = strings.TrimPrefix(strings.TrimLeft(out, " \n"), "<pad>")
	out = strings.ReplaceAll(out, "</s>", "")
	return strings.TrimSpace(out)
}
