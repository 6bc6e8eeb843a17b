package testsupport

import (
	"context"
	"testing"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenQueue opens a jobqueue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *jobqueue.Store {
	t.Helper()

	store, err := jobqueue.Open(cfg)
	if err != nil {
		t.Fatalf("jobqueue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewOrganization inserts an active organization for tests.
func NewOrganization(t testing.TB, store *catalog.Store, name, channelID string) *catalog.Organization {
	t.Helper()

	org, err := store.CreateOrganization(context.Background(), name, channelID)
	if err != nil {
		t.Fatalf("store.CreateOrganization: %v", err)
	}
	return org
}

// NewCreator inserts an active independent creator for tests.
func NewCreator(t testing.TB, store *catalog.Store, name, channelID string) *catalog.Creator {
	t.Helper()

	creator, err := store.CreateCreator(context.Background(), name, channelID)
	if err != nil {
		t.Fatalf("store.CreateCreator: %v", err)
	}
	return creator
}

// StagedFixture returns a minimal staged video record for upsert tests.
func StagedFixture(externalID, title string) catalog.StagedVideo {
	return catalog.StagedVideo{
		ExternalVideoID: externalID,
		Title:           title,
		Description:     "fixture description",
		ThumbnailURL:    "https://img.example/" + externalID + ".jpg",
		DurationSeconds: 600,
		PublishedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ViewCount:       2500,
		LikeCount:       80,
		ChannelID:       "UC-fixture",
	}
}
