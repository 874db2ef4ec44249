// Package ui holds the lipgloss stylesheet used by command output.
//
// The [Palette] groups the styles (title, ok, err, warn, help) and the
// package-level render helpers apply them, so command code never
// constructs styles inline.
package ui
