package store

import "testing"

func TestCreateSubscriptionUpsertsByEndpoint(t *testing.T) {
	db := setupTestDB(t)
	familyID, aliceID, _ := seedFamily(t, db)
	store := NewPushStore(db)

	first, err := store.CreateSubscription(familyID, aliceID, "https://push.example/abc", "p256dh-1", "auth-1", "kitchen kiosk")
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if first == nil {
		t.Fatal("CreateSubscription() returned nil")
	}

	// Same endpoint again refreshes the keys instead of adding a row.
	second, err := store.CreateSubscription(familyID, aliceID, "https://push.example/abc", "p256dh-2", "auth-2", "kitchen kiosk")
	if err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ID = %d, want %d (same endpoint, same row)", second.ID, first.ID)
	}
	if second.P256dhKey != "p256dh-2" {
		t.Errorf("P256dhKey = %q, want %q", second.P256dhKey, "p256dh-2")
	}

	subs, err := store.ListByMember(aliceID)
	if err != nil {
		t.Fatalf("ListByMember() error = %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("ListByMember() returned %d subscriptions, want 1", len(subs))
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	db := setupTestDB(t)
	familyID, aliceID, _ := seedFamily(t, db)
	store := NewPushStore(db)

	if _, err := store.CreateSubscription(familyID, aliceID, "https://push.example/gone", "k", "a", "phone"); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	if err := store.DeleteByEndpoint("https://push.example/gone"); err != nil {
		t.Fatalf("DeleteByEndpoint() error = %v", err)
	}

	subs, err := store.ListByMember(aliceID)
	if err != nil {
		t.Fatalf("ListByMember() error = %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("ListByMember() returned %d subscriptions, want 0 after delete", len(subs))
	}
}
