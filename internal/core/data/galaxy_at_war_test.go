package data

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"
)

func TestLoadGalaxyAtWar(t *testing.T) {
	db := setUpDatabase(t)

	account := generateAccount(t)
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("error creating test account: %v", err)
	}

	got, err := LoadGalaxyAtWar(db, account.ID)
	if err != nil {
		t.Fatalf("LoadGalaxyAtWar() returned an unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("LoadGalaxyAtWar() = %v, want nil before any save", got)
	}

	want := &GalaxyAtWar{AccountID: account.ID, EarthPercent: 50, AsariPercent: 25}
	if err := SaveGalaxyAtWar(db, want); err != nil {
		t.Fatalf("SaveGalaxyAtWar() returned an unexpected error: %v", err)
	}

	got, err = LoadGalaxyAtWar(db, account.ID)
	if err != nil {
		t.Fatalf("LoadGalaxyAtWar() returned an unexpected error: %v", err)
	}
	got.CreatedAt, got.UpdatedAt, got.DeletedAt = want.CreatedAt, want.UpdatedAt, gorm.DeletedAt{}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("galaxy at war row did not match expected; diff:\n%s", diff)
	}
}

func TestSaveGalaxyAtWar_Upsert(t *testing.T) {
	db := setUpDatabase(t)

	account := generateAccount(t)
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("error creating test account: %v", err)
	}

	if err := SaveGalaxyAtWar(db, &GalaxyAtWar{AccountID: account.ID, EarthPercent: 10}); err != nil {
		t.Fatalf("SaveGalaxyAtWar() returned an unexpected error: %v", err)
	}
	if err := SaveGalaxyAtWar(db, &GalaxyAtWar{AccountID: account.ID, EarthPercent: 90}); err != nil {
		t.Fatalf("SaveGalaxyAtWar() returned an unexpected error: %v", err)
	}

	got, err := LoadGalaxyAtWar(db, account.ID)
	if err != nil {
		t.Fatalf("LoadGalaxyAtWar() returned an unexpected error: %v", err)
	}
	if got.EarthPercent != 90 {
		t.Errorf("EarthPercent = %d, want 90 after upsert", got.EarthPercent)
	}
}
