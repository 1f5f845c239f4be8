package vision

import (
	"context"
	"testing"
)

func TestRandomScorer_StaysInRange(t *testing.T) {
	s := NewRandomScorer(1, discardLogger())
	for i := 0; i < 200; i++ {
		score, err := s.Score(context.Background(), "frame.jpg")
		if err != nil {
			t.Fatalf("RandomScorer must never fail: %v", err)
		}
		if score < 0 || score >= 100 {
			t.Fatalf("score %v outside [0, 100)", score)
		}
	}
}

func TestRandomScorer_SeededSequence(t *testing.T) {
	a := NewRandomScorer(7, discardLogger())
	b := NewRandomScorer(7, discardLogger())

	for i := 0; i < 10; i++ {
		sa, _ := a.Score(context.Background(), "x.jpg")
		sb, _ := b.Score(context.Background(), "x.jpg")
		if sa != sb {
			t.Fatalf("same seed diverged at %d: %v != %v", i, sa, sb)
		}
	}
}

func TestSplitHostPort(t *testing.T) {
	base, port, err := splitHostPort("http://localhost:11434")
	if err != nil {
		t.Fatalf("splitHostPort failed: %v", err)
	}
	if base != "http://localhost" || port != 11434 {
		t.Errorf("got (%q, %d)", base, port)
	}

	base, port, err = splitHostPort("http://ollama.lan")
	if err != nil {
		t.Fatalf("splitHostPort failed: %v", err)
	}
	if base != "http://ollama.lan" || port != 11434 {
		t.Errorf("default port: got (%q, %d)", base, port)
	}

	if _, _, err := splitHostPort("not a url"); err == nil {
		t.Error("expected error for junk input")
	}
}
