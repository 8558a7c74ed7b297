// Package viz draws bodies onto a colored braille canvas for terminal
// viewers.
//
// A [Camera] maps world coordinates onto the canvas sub-pixel grid (two
// columns by four rows of dots per cell). [Scene] combines a camera with a
// [Theme] and renders body snapshots, their trails and recent events.
package viz
