// Package api defines the shared types of the denker runtime: conversation
// messages, tool calls and definitions, the loop event stream vocabulary,
// and the structured error model.
package api
