package codegen

import "strings"

const (
	planOpen  = "<plan>"
	planClose = "</plan>"
	fileOpen  = `<file path="`
	attrEnd   = `">`
	fileClose = "</file>"
)

// Parse interprets a cumulative prefix of model output written in the edit
// format:
//
//	<plan>
//	what will change and why
//	</plan>
//	<file path="src/App.tsx">
//	full file content
//	</file>
//
// Text outside the blocks is ignored. A file is reported only once its path
// attribute is complete. A closing tag cut off at the end of text is not part
// of the value.
func Parse(text string) Snapshot {
	var snap Snapshot

	start := strings.Index(text, planOpen)
	if start < 0 {
		snap.Plan = Plan{State: PlanPending}
		return snap
	}
	body := text[start+len(planOpen):]
	rest := ""
	if end := strings.Index(body, planClose); end >= 0 {
		snap.Plan = Plan{State: PlanComplete, Value: strings.TrimSpace(body[:end])}
		rest = body[end+len(planClose):]
	} else {
		snap.Plan = Plan{State: PlanIncomplete, Value: strings.TrimSpace(trimPartialTag(body, planClose))}
	}

	snap.Files = parseFiles(rest)
	return snap
}

func parseFiles(text string) []File {
	var files []File
	for {
		i := strings.Index(text, fileOpen)
		if i < 0 {
			return files
		}
		text = text[i+len(fileOpen):]

		j := strings.Index(text, attrEnd)
		if j < 0 {
			return files
		}
		path := strings.TrimSpace(text[:j])
		text = strings.TrimPrefix(text[j+len(attrEnd):], "\n")

		if k := strings.Index(text, fileClose); k >= 0 {
			files = append(files, File{Path: path, Content: strings.TrimSuffix(text[:k], "\n"), Done: true})
			text = text[k+len(fileClose):]
			continue
		}
		files = append(files, File{Path: path, Content: trimPartialTag(text, fileClose)})
		return files
	}
}

// trimPartialTag drops a trailing prefix of tag, such as "</pl" at the end
// of a stream that has not yet produced the full "</plan>".
func trimPartialTag(s, tag string) string {
	for n := len(tag) - 1; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return s[:len(s)-n]
		}
	}
	return s
}
