package ranking

import (
	"testing"

	"github.com/hpungsan/snapstrip/internal/errors"
)

func TestRecordStripAndGet(t *testing.T) {
	database := openTestDB(t)

	if err := RecordStrip(database, testDay, "/data/collage.jpg", 3); err != nil {
		t.Fatalf("RecordStrip failed: %v", err)
	}

	strip, err := GetStrip(database, testDay)
	if err != nil {
		t.Fatalf("GetStrip failed: %v", err)
	}
	if strip.Path != "/data/collage.jpg" || strip.PhotoCount != 3 {
		t.Fatalf("strip = %+v", strip)
	}
	if strip.PushedAt != nil || strip.HostedURL != nil {
		t.Fatalf("fresh strip should not be pushed: %+v", strip)
	}
}

func TestRecordStrip_RebuildResetsPushState(t *testing.T) {
	database := openTestDB(t)

	if err := RecordStrip(database, testDay, "/data/collage.jpg", 2); err != nil {
		t.Fatalf("RecordStrip failed: %v", err)
	}
	if err := MarkPushed(database, testDay, "https://img.example/abc.jpg"); err != nil {
		t.Fatalf("MarkPushed failed: %v", err)
	}

	if err := RecordStrip(database, testDay, "/data/collage.jpg", 3); err != nil {
		t.Fatalf("RecordStrip rebuild failed: %v", err)
	}

	strip, err := GetStrip(database, testDay)
	if err != nil {
		t.Fatalf("GetStrip failed: %v", err)
	}
	if strip.PhotoCount != 3 {
		t.Errorf("photo_count = %d, want 3", strip.PhotoCount)
	}
	if strip.PushedAt != nil || strip.HostedURL != nil {
		t.Errorf("rebuild should reset push state: %+v", strip)
	}
}

func TestMarkPushed(t *testing.T) {
	database := openTestDB(t)

	if err := RecordStrip(database, testDay, "/data/collage.jpg", 3); err != nil {
		t.Fatalf("RecordStrip failed: %v", err)
	}
	if err := MarkPushed(database, testDay, "https://img.example/abc.jpg"); err != nil {
		t.Fatalf("MarkPushed failed: %v", err)
	}

	strip, err := GetStrip(database, testDay)
	if err != nil {
		t.Fatalf("GetStrip failed: %v", err)
	}
	if strip.PushedAt == nil {
		t.Error("pushed_at not set")
	}
	if strip.HostedURL == nil || *strip.HostedURL != "https://img.example/abc.jpg" {
		t.Errorf("hosted_url = %v", strip.HostedURL)
	}
}

func TestMarkPushed_NoHostedURL(t *testing.T) {
	database := openTestDB(t)

	if err := RecordStrip(database, testDay, "/data/collage.jpg", 3); err != nil {
		t.Fatalf("RecordStrip failed: %v", err)
	}
	if err := MarkPushed(database, testDay, ""); err != nil {
		t.Fatalf("MarkPushed failed: %v", err)
	}

	strip, err := GetStrip(database, testDay)
	if err != nil {
		t.Fatalf("GetStrip failed: %v", err)
	}
	if strip.PushedAt == nil {
		t.Error("pushed_at not set")
	}
	if strip.HostedURL != nil {
		t.Errorf("hosted_url = %v, want nil for inline push", strip.HostedURL)
	}
}

func TestStrips_NotFound(t *testing.T) {
	database := openTestDB(t)

	if _, err := GetStrip(database, "2026-01-01"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetStrip missing: got %v, want NOT_FOUND", err)
	}
	if err := MarkPushed(database, "2026-01-01", ""); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("MarkPushed missing: got %v, want NOT_FOUND", err)
	}
}
