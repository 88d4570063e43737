// Package retriever answers "what does this repository's documentation say
// about this issue" for a single tracked repository.
//
// Retrieve embeds the issue title and body, searches the vector store for
// the nearest chunks of the repository above a similarity threshold, and
// formats them into one context block grouped by file:
//
//	Relevant excerpts from the documentation of acme/widgets:
//
//	### CONTRIBUTING.md
//
//	<chunk 0>
//
//	<chunk 3>
//
//	---
//
//	### README.md
//
//	<chunk 1>
//
// No chunk above the threshold is a normal outcome, reported as an empty
// result rather than an error.
package retriever
