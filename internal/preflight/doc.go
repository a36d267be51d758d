// Package preflight provides readiness checks for the binaries, directories,
// and media files a wall session depends on.
//
// These checks run in two contexts:
//   - The run command calls RunAll before starting the engine so a doomed session
//     fails in milliseconds instead of after eight fullscreen windows open.
//   - The CLI "videowall check" command uses the same checks to display
//     environment health without starting anything.
package preflight
