// Package ui renders keysmith's terminal output.
//
// Formatters mark content by meaning rather than by color:
//
//	ui.Success.Sprint("✓") + " Created key " + ui.Highlight.Sprint(id.String())
//	ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("keysmith keys list")
//
// Colors are dropped when NO_COLOR is set or stdout is not a color-capable
// terminal. Code, Highlight and Muted then fall back to backticks, single
// quotes and parentheses; the other formatters print text unchanged.
//
// RenderLog turns an operation log into the indented report shown after
// every key operation and by `keysmith keys log --details`. Each entry gets
// a marker for its level and two spaces of indent per depth.
package ui
