package user

import "testing"

func TestRankBands(t *testing.T) {
	tests := []struct {
		xp   int64
		want string
	}{
		{0, RankNewbie},
		{9, RankNewbie},
		{10, RankHelperRecruit},
		{49, RankHelperRecruit},
		{50, RankActivePeer},
		{199, RankActivePeer},
		{200, RankCommunityElder},
		{499, RankCommunityElder},
		{500, RankKarmicMaster},
		{1200, RankKarmicMaster},
	}

	for _, tt := range tests {
		if got := Rank(tt.xp); got != tt.want {
			t.Errorf("Rank(%d) = %q, want %q", tt.xp, got, tt.want)
		}
	}
}
