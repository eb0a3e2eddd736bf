// ABOUTME: Device-facing drivers between the node graph and a backend
// ABOUTME: OutputLayer plays a root node, InputLine exposes capture as a node
// Package device connects the pull-based node graph to a backend.
//
// An OutputLayer negotiates a device format, then runs one goroutine that
// renders the root node at the source sample rate, resamples to the device
// rate, converts to bytes and writes to the backend. An InputLine does the
// reverse for capture and can be used directly as a mixer input.
//
// Example:
//
//	layer := device.NewOutputLayer(b, device.OutputConfig{})
//	if err := layer.Open(nil, audio.FormatHigh, 1024); err != nil {
//	    return err
//	}
//	defer layer.Close()
//	layer.SetRoot(m)
//	if err := layer.Start(); err != nil {
//	    return err
//	}
package device
