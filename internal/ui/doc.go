// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// A sync run moves through these views:
//  1. [StartingView] : Fetching the source playlist
//  2. [ConfirmView] : Review the source tracks and confirm the sync
//  3. [SyncView] : Monitor added and removed records as they are applied
//  4. [ResultView] : Final counters, or the quota halt
//
// The [Model] starts the run in a command and receives its confirmation request, progress updates and
// completion through one channel of [Msg] values. [Confirm] is the inline variant used by plain output.
//
// Keyboard navigation uses vim-style bindings (j/k, y/n, q) with help rendered by charmbracelet/bubbles/help.
package ui
