// Package realtime serves agent sessions to browser clients over websockets.
// Each connection owns one agent.Session; request envelopes are handled one
// at a time and every envelope the session emits is written back as a JSON
// text frame, and optionally mirrored to a Relay.
package realtime
