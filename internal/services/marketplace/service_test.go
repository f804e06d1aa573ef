package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/karmicapp/karmic/internal/domain/request"
	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store, user.User, user.User) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	requester, err := store.CreateUser(ctx, user.User{Username: "RequesterA", Coins: 100})
	if err != nil {
		t.Fatalf("create requester: %v", err)
	}
	helper, err := store.CreateUser(ctx, user.User{Username: "HelperB", Coins: 100})
	if err != nil {
		t.Fatalf("create helper: %v", err)
	}
	return svc, store, requester, helper
}

func TestCreateFreezesRewardFromDifficulty(t *testing.T) {
	tests := []struct {
		difficulty string
		want       int64
	}{
		{"Easy", 10},
		{"Medium", 25},
		{"Hard", 50},
		{"Impossible", 10},
	}

	for _, tt := range tests {
		svc, _, requester, _ := newService(t)
		created, err := svc.Create(context.Background(), requester.ID, "favor", "details", tt.difficulty)
		if err != nil {
			t.Fatalf("create %s: %v", tt.difficulty, err)
		}
		if created.Reward != tt.want || created.XPValue != tt.want {
			t.Errorf("%s: reward/xp = %d/%d, want %d/%d", tt.difficulty, created.Reward, created.XPValue, tt.want, tt.want)
		}
		if created.Status != request.StatusLive {
			t.Errorf("%s: status = %s, want Live", tt.difficulty, created.Status)
		}
	}
}

func TestCreateDefaultsToMedium(t *testing.T) {
	svc, _, requester, _ := newService(t)

	created, err := svc.Create(context.Background(), requester.ID, "favor", "details", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Difficulty != "Medium" || created.Reward != 25 {
		t.Errorf("difficulty/reward = %s/%d, want Medium/25", created.Difficulty, created.Reward)
	}
}

func TestCreateDebitsRequester(t *testing.T) {
	svc, store, requester, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetUser(ctx, requester.ID)
	if err != nil {
		t.Fatalf("get requester: %v", err)
	}
	if got.Coins != 75 {
		t.Errorf("requester coins = %d, want 75", got.Coins)
	}
}

func TestCreateInsufficientCoinsLeavesBalance(t *testing.T) {
	svc, store, _, _ := newService(t)
	ctx := context.Background()

	poor, err := store.CreateUser(ctx, user.User{Username: "poor", Coins: 5})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err = svc.Create(ctx, poor.ID, "favor", "details", "Hard")
	if !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("create error = %v, want ErrInsufficientCoins", err)
	}

	got, _ := store.GetUser(ctx, poor.ID)
	if got.Coins != 5 {
		t.Errorf("balance = %d, want untouched 5", got.Coins)
	}
	feed, err := svc.LiveFeed(ctx, "")
	if err != nil {
		t.Fatalf("live feed: %v", err)
	}
	if len(feed) != 0 {
		t.Errorf("live feed has %d entries after rejected create, want 0", len(feed))
	}
}

func TestCreateRequiresTitleAndDescription(t *testing.T) {
	svc, _, requester, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, requester.ID, "", "details", "Easy"); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("empty title error = %v, want ErrEmptyTitle", err)
	}
	if _, err := svc.Create(ctx, requester.ID, "favor", "   ", "Easy"); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("blank description error = %v, want ErrEmptyTitle", err)
	}
}

func TestAcceptAssignsHelper(t *testing.T) {
	svc, _, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	accepted, err := svc.Accept(ctx, helper.ID, created.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != request.StatusAccepted || accepted.HelperID != helper.ID {
		t.Errorf("status/helper = %s/%s, want Accepted/%s", accepted.Status, accepted.HelperID, helper.ID)
	}
}

func TestAcceptOwnRequestFails(t *testing.T) {
	svc, _, requester, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Accept(ctx, requester.ID, created.ID); !errors.Is(err, ErrOwnRequest) {
		t.Fatalf("self accept error = %v, want ErrOwnRequest", err)
	}
}

func TestAcceptNonLiveFails(t *testing.T) {
	svc, store, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	third, err := store.CreateUser(ctx, user.User{Username: "third", Coins: 100})
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	if _, err := svc.Accept(ctx, third.ID, created.ID); !errors.Is(err, ErrNotLive) {
		t.Fatalf("second accept error = %v, want ErrNotLive", err)
	}
}

func TestTransitionsOnlyMoveForward(t *testing.T) {
	svc, _, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Confirm before accept: no helper assigned yet.
	if _, err := svc.HelperConfirm(ctx, helper.ID, created.ID); !errors.Is(err, ErrNotHelper) {
		t.Errorf("confirm before accept error = %v, want ErrNotHelper", err)
	}
	// Approve before confirm.
	if _, err := svc.RequesterApprove(ctx, requester.ID, created.ID); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("approve before confirm error = %v, want ErrWrongStatus", err)
	}

	if _, err := svc.Accept(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Approve while merely accepted.
	if _, err := svc.RequesterApprove(ctx, requester.ID, created.ID); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("approve before confirm error = %v, want ErrWrongStatus", err)
	}
}

func TestHelperConfirmRequiresAssignedHelper(t *testing.T) {
	svc, store, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	imposter, err := store.CreateUser(ctx, user.User{Username: "imposter", Coins: 100})
	if err != nil {
		t.Fatalf("create imposter: %v", err)
	}
	if _, err := svc.HelperConfirm(ctx, imposter.ID, created.ID); !errors.Is(err, ErrNotHelper) {
		t.Fatalf("imposter confirm error = %v, want ErrNotHelper", err)
	}

	confirmed, err := svc.HelperConfirm(ctx, helper.ID, created.ID)
	if err != nil {
		t.Fatalf("helper confirm: %v", err)
	}
	if confirmed.Status != request.StatusConfirmedByHelper {
		t.Errorf("status = %s, want Confirmed_By_Helper", confirmed.Status)
	}
}

func TestRequesterApproveRequiresRequester(t *testing.T) {
	svc, _, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.HelperConfirm(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.RequesterApprove(ctx, helper.ID, created.ID); !errors.Is(err, ErrNotRequester) {
		t.Fatalf("helper approve error = %v, want ErrNotRequester", err)
	}
}

func TestApproveSettlesExactlyOnce(t *testing.T) {
	svc, store, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "favor", "details", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.HelperConfirm(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	settled, err := svc.RequesterApprove(ctx, requester.ID, created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if settled.Status != request.StatusCompleted {
		t.Errorf("status = %s, want Completed", settled.Status)
	}

	if _, err := svc.RequesterApprove(ctx, requester.ID, created.ID); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("second approve error = %v, want ErrWrongStatus", err)
	}

	got, _ := store.GetUser(ctx, helper.ID)
	if got.Coins != 125 || got.XP != 25 {
		t.Errorf("helper coins/xp = %d/%d, want 125/25 after single settlement", got.Coins, got.XP)
	}
}

func TestEndToEndSettlement(t *testing.T) {
	svc, store, requester, helper := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, requester.ID, "walk my dog", "around the block", "Medium")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a, _ := store.GetUser(ctx, requester.ID)
	if a.Coins != 75 {
		t.Fatalf("requester coins after create = %d, want 75", a.Coins)
	}

	if _, err := svc.Accept(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.HelperConfirm(ctx, helper.ID, created.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	settled, err := svc.RequesterApprove(ctx, requester.ID, created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if settled.Status != request.StatusCompleted {
		t.Errorf("status = %s, want Completed", settled.Status)
	}

	b, _ := store.GetUser(ctx, helper.ID)
	if b.Coins != 125 {
		t.Errorf("helper coins = %d, want 125", b.Coins)
	}
	if b.XP != 25 {
		t.Errorf("helper xp = %d, want 25", b.XP)
	}
}

func TestLiveFeedExcludesOwnAndResolvesNames(t *testing.T) {
	svc, _, requester, helper := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, requester.ID, "requester favor", "details", "Easy"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, helper.ID, "helper favor", "details", "Easy"); err != nil {
		t.Fatalf("create: %v", err)
	}

	feed, err := svc.LiveFeed(ctx, requester.ID)
	if err != nil {
		t.Fatalf("live feed: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("feed size = %d, want 1", len(feed))
	}
	if feed[0].Title != "helper favor" || feed[0].RequesterName != "HelperB" {
		t.Errorf("feed entry = %q by %q, want helper favor by HelperB", feed[0].Title, feed[0].RequesterName)
	}
}

func TestMyRequestsCoversBothRoles(t *testing.T) {
	svc, _, requester, helper := newService(t)
	ctx := context.Background()

	mine, err := svc.Create(ctx, requester.ID, "posted by me", "details", "Easy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	theirs, err := svc.Create(ctx, helper.ID, "posted by other", "details", "Easy")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ctx, requester.ID, theirs.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	involved, err := svc.MyRequests(ctx, requester.ID)
	if err != nil {
		t.Fatalf("my requests: %v", err)
	}
	if len(involved) != 2 {
		t.Fatalf("involved = %d, want 2", len(involved))
	}
	found := map[string]bool{}
	for _, summary := range involved {
		found[summary.ID] = true
		if summary.ID == theirs.ID && summary.HelperName != "RequesterA" {
			t.Errorf("helper name = %q, want RequesterA", summary.HelperName)
		}
	}
	if !found[mine.ID] || !found[theirs.ID] {
		t.Errorf("involved requests missing: %v", found)
	}
}
