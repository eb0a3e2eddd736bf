// ABOUTME: Shared helpers for effect tests
// ABOUTME: Keeps resample imports out of the individual test files
package effect

import "github.com/Resonate-Protocol/audiograph/pkg/audio/resample"

func resampleLinear() resample.Method { return resample.Linear{} }
