package data

import "testing"

func TestTopLeaderboardSamples(t *testing.T) {
	db := setUpDatabase(t)

	account := generateAccount(t)
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("error creating test account: %v", err)
	}

	scores := []int64{10, 90, 50}
	for _, score := range scores {
		if err := InsertLeaderboardSample(db, &LeaderboardSample{
			AccountID: account.ID,
			Category:  "n7_score",
			Score:     score,
		}); err != nil {
			t.Fatalf("InsertLeaderboardSample() returned an unexpected error: %v", err)
		}
	}

	top, err := TopLeaderboardSamples(db, "n7_score", 2)
	if err != nil {
		t.Fatalf("TopLeaderboardSamples() returned an unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d samples, want 2", len(top))
	}
	if top[0].Score != 90 || top[1].Score != 50 {
		t.Errorf("got scores %d, %d; want 90, 50 in descending order", top[0].Score, top[1].Score)
	}
}

func TestTopLeaderboardSamples_DifferentCategory(t *testing.T) {
	db := setUpDatabase(t)

	account := generateAccount(t)
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("error creating test account: %v", err)
	}
	if err := InsertLeaderboardSample(db, &LeaderboardSample{AccountID: account.ID, Category: "waves_survived", Score: 5}); err != nil {
		t.Fatalf("InsertLeaderboardSample() returned an unexpected error: %v", err)
	}

	top, err := TopLeaderboardSamples(db, "n7_score", 10)
	if err != nil {
		t.Fatalf("TopLeaderboardSamples() returned an unexpected error: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("got %d samples for unrelated category, want 0", len(top))
	}
}
