package codegen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/martinemde/mojocode/unifiedllm"
)

const systemPrompt = `You are a coding agent editing a web application that lives in a remote sandbox.
The user describes a change. Decide what to do, then write the files.

Respond in exactly this format and nothing else:

<plan>
A short description of the change you are about to make.
</plan>
<file path="relative/path.ext">
The complete new content of the file.
</file>

Rules:
- Write the plan first, then one <file> block per file you create or change.
- Every <file> block contains the whole file, never a diff.
- Only touch files needed for the change. Do not delete files.
- Only use packages listed in the manifest unless the change requires a new one.`

// BuildMessages renders req into the conversation sent to the model: the
// system prompt with the package manifest, the prior turns, and a final user
// message holding the current files and the feedback.
func BuildMessages(req Request) []unifiedllm.Message {
	msgs := make([]unifiedllm.Message, 0, len(req.History)+2)
	msgs = append(msgs, unifiedllm.SystemMessage(systemWithManifest(req.Manifest)))
	msgs = append(msgs, req.History...)
	msgs = append(msgs, unifiedllm.UserMessage(userMessage(req.Files, req.Feedback)))
	return msgs
}

func systemWithManifest(manifest any) string {
	if manifest == nil {
		return systemPrompt
	}
	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil || string(b) == "{}" || string(b) == "null" {
		return systemPrompt
	}
	return systemPrompt + "\n\nPackage manifest:\n" + string(b)
}

func userMessage(files []File, feedback string) string {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var sb strings.Builder
	if len(sorted) > 0 {
		sb.WriteString("Current files:\n\n")
		for _, f := range sorted {
			fmt.Fprintf(&sb, "%s%s%s\n%s\n%s\n\n", fileOpen, f.Path, attrEnd, f.Content, fileClose)
		}
	}
	sb.WriteString("Feedback:\n")
	sb.WriteString(feedback)
	return sb.String()
}
