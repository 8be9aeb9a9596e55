package audioio

import (
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(result))
	}

	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 24kHz -> 16kHz (3:2 ratio)
	samples := make([]int16, 480) // 20ms at 24kHz
	for i := range samples {
		samples[i] = int16(i)
	}

	result := Resample(samples, 24000, 16000)

	expectedLen := 320
	if len(result) != expectedLen {
		t.Errorf("Expected %d samples, got %d", expectedLen, len(result))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 16kHz -> 24kHz (2:3 ratio)
	samples := make([]int16, 320) // 20ms at 16kHz
	for i := range samples {
		samples[i] = int16(i * 100)
	}

	result := Resample(samples, 16000, 24000)

	expectedLen := 480
	if len(result) != expectedLen {
		t.Errorf("Expected %d samples, got %d", expectedLen, len(result))
	}
}

func TestResample_Empty(t *testing.T) {
	result := Resample(nil, 24000, 48000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for nil input")
	}

	result = Resample([]int16{}, 24000, 48000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for empty input")
	}
}

func TestBytesToSamples(t *testing.T) {
	data := []byte{0x02, 0x01, 0x04, 0x03}
	samples := BytesToSamples(data)

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}

	if samples[0] != 0x0102 {
		t.Errorf("Sample 0: expected 0x0102, got 0x%04x", samples[0])
	}

	if samples[1] != 0x0304 {
		t.Errorf("Sample 1: expected 0x0304, got 0x%04x", samples[1])
	}
}

func TestSamplesToBytes_RoundTrip(t *testing.T) {
	samples := []int16{-32768, -1, 0, 1, 32767}
	back := BytesToSamples(SamplesToBytes(samples))

	if len(back) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(back))
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}
