// Package provider defines the backend abstraction consumed by the agent
// loop: a streaming turn interface plus the event vocabulary a backend
// produces. Concrete backends live in subpackages.
package provider
