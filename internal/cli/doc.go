// Package cli holds the command line plumbing shared by steward's commands:
// common flags, result printing as go-pretty tables, JSON or YAML, and the
// progress spinner shown while remote work runs.
package cli
