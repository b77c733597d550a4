package store

import "testing"

func TestEncodeDecodeEmbedding_RoundTrips(t *testing.T) {
	t.Parallel()
	vec := []float32{0.5, -0.25, 3.0, 0, -1.5}
	blob := encodeEmbedding(vec)
	if len(blob) != 4*len(vec) {
		t.Fatalf("expected blob length %d, got %d", 4*len(vec), len(blob))
	}
	got := decodeEmbedding(blob)
	if len(got) != len(vec) {
		t.Fatalf("expected %d floats back, got %d", len(vec), len(got))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("index %d: want %v got %v", i, vec[i], got[i])
		}
	}
}

func TestEncodeEmbedding_EmptyYieldsNilBlob(t *testing.T) {
	t.Parallel()
	if blob := encodeEmbedding(nil); blob != nil {
		t.Errorf("expected nil blob for empty vector, got %v", blob)
	}
}

func TestDecodeEmbedding_MalformedBlobYieldsNil(t *testing.T) {
	t.Parallel()
	if vec := decodeEmbedding([]byte{1, 2, 3}); vec != nil {
		t.Errorf("expected nil for non-multiple-of-4 blob, got %v", vec)
	}
}
