// ABOUTME: Tests for realtime controls
// ABOUTME: Checks clamping, defaults and concurrent access
package control

import (
	"math"
	"sync"
	"testing"
)

func TestFloatClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected float32
	}{
		{"in range", 0.5, 0.5},
		{"below", -3, -1},
		{"above", 7, 1},
		{"edge", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFloat("Pan", -1, 1, 0)
			c.Set(tt.input)
			if c.Value() != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, c.Value())
			}
		})
	}
}

func TestFloatIgnoresNaN(t *testing.T) {
	c := NewFloat("Gain", 0, 2, 1)
	c.Set(float32(math.NaN()))
	if c.Value() != 1 {
		t.Errorf("expected 1, got %v", c.Value())
	}
}

func TestFloatResetAndNormalized(t *testing.T) {
	c := NewFloat("Gain", 0, 2, 1)
	c.Set(2)
	if c.Normalized() != 1 {
		t.Errorf("expected normalized 1, got %v", c.Normalized())
	}
	c.Reset()
	if c.Value() != 1 {
		t.Errorf("expected default 1, got %v", c.Value())
	}
}

func TestBoolToggle(t *testing.T) {
	c := NewBool("Swap", false)
	if !c.Toggle() || !c.Enabled() {
		t.Error("expected toggle to enable")
	}
	c.Reset()
	if c.Enabled() {
		t.Error("expected reset to disable")
	}
}

func TestFloatConcurrentAccess(t *testing.T) {
	c := NewFloat("Gain", 0, 2, 1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float32) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Set(v)
				_ = c.Value()
			}
		}(float32(i) / 4)
	}
	wg.Wait()
	if v := c.Value(); v < 0 || v > 2 {
		t.Errorf("value escaped range: %v", v)
	}
}
