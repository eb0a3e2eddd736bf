// ABOUTME: Leaf nodes that produce audio for the graph
// ABOUTME: Test signal generator, decoded-file player and DataLine-fed stream
// Package source provides the nodes that sit at the leaves of a mixer graph.
//
// Generator synthesizes periodic waveforms, noise or a constant level.
// Sound plays a decoded file with start/stop, looping and a live speed
// control. Stream pulls buffers that another goroutine pushes into a
// dataline.DataLine, such as a network client or a capture pump.
package source
