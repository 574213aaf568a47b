// Package history provides the Redis-backed store for finished workflow
// summaries.
//
// # Design
//
// Each finished workflow instance is summarized into a JSON record and pushed
// onto a per-workflow Redis list. Lists are trimmed to a configured retention
// bound on every write, so the newest records survive and storage stays flat.
//
// # Architecture boundaries
//
// This package owns persistence only. It does NOT decide when a workflow is
// finished or what goes into a summary; the controller does.
//
// # What this package must NOT do
//
//   - Import authflow or any sibling internal package.
//   - Store step payloads or credentials; summaries carry aggregates only.
package history
