package store

import (
	"errors"
	"testing"
)

func TestCreateFamilyAndMembers(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyStore(db)

	family, err := families.CreateFamily("The Does")
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}
	if family.Name != "The Does" {
		t.Errorf("Name = %q, want %q", family.Name, "The Does")
	}

	member, err := families.CreateMember(family.ID, "Alice", "#ff0000", "🦊", true)
	if err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if !member.IsCustodian {
		t.Error("IsCustodian = false, want true")
	}
	if member.SortOrder != 0 {
		t.Errorf("SortOrder = %d, want 0 for first member", member.SortOrder)
	}

	second, err := families.CreateMember(family.ID, "Kid", "#00ff00", "🐰", false)
	if err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}
	if second.SortOrder != 1 {
		t.Errorf("SortOrder = %d, want 1 for second member", second.SortOrder)
	}

	members, err := families.ListMembers(family.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("ListMembers() returned %d members, want 2", len(members))
	}
}

func TestGetFamilyMissing(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyStore(db)

	family, err := families.GetFamily(999)
	if err != nil {
		t.Fatalf("GetFamily() error = %v", err)
	}
	if family != nil {
		t.Errorf("GetFamily() = %+v, want nil for missing family", family)
	}
}

func TestCustodiansExactlyTwo(t *testing.T) {
	db := setupTestDB(t)
	familyID, aliceID, bobID := seedFamily(t, db)
	families := NewFamilyStore(db)

	custodians, err := families.Custodians(familyID)
	if err != nil {
		t.Fatalf("Custodians() error = %v", err)
	}
	if len(custodians) != 2 {
		t.Fatalf("Custodians() returned %d members, want 2", len(custodians))
	}
	if custodians[0].ID != aliceID || custodians[1].ID != bobID {
		t.Errorf("Custodians() = [%d, %d], want [%d, %d] by sort order",
			custodians[0].ID, custodians[1].ID, aliceID, bobID)
	}
}

func TestCustodiansIncompleteRoster(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyStore(db)

	family, err := families.CreateFamily("Solo")
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}
	if _, err := families.CreateMember(family.ID, "Alice", "#ff0000", "🦊", true); err != nil {
		t.Fatalf("CreateMember() error = %v", err)
	}

	_, err = families.Custodians(family.ID)
	if !errors.Is(err, ErrRosterIncomplete) {
		t.Errorf("Custodians() error = %v, want ErrRosterIncomplete", err)
	}
}

func TestSetCustodian(t *testing.T) {
	db := setupTestDB(t)
	familyID, aliceID, _ := seedFamily(t, db)
	families := NewFamilyStore(db)

	member, err := families.SetCustodian(aliceID, false)
	if err != nil {
		t.Fatalf("SetCustodian() error = %v", err)
	}
	if member == nil {
		t.Fatal("SetCustodian() returned nil for existing member")
	}
	if member.IsCustodian {
		t.Error("IsCustodian = true, want false after clearing flag")
	}

	// Only one custodian left; the roster is now incomplete.
	if _, err := families.Custodians(familyID); !errors.Is(err, ErrRosterIncomplete) {
		t.Errorf("Custodians() error = %v, want ErrRosterIncomplete", err)
	}
}

func TestSetCustodianMissingMember(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyStore(db)

	member, err := families.SetCustodian(999, true)
	if err != nil {
		t.Fatalf("SetCustodian() error = %v", err)
	}
	if member != nil {
		t.Errorf("SetCustodian() = %+v, want nil for missing member", member)
	}
}
