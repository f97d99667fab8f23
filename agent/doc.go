// Package agent coordinates one coding-agent session: it loads the tool
// inventory, owns the sandbox identity and conversation history, and turns a
// model's snapshot stream into the ordered envelope sequence a realtime
// client renders.
//
// A Session is driven by request envelopes through Handle. Each feedback turn
// runs to completion, including the sandbox write-back, before the next
// request is accepted. Sessions share no mutable state, so a process may host
// any number of them concurrently.
package agent
