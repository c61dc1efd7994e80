package uact_test

import (
	"strings"
	"testing"

	"github.com/sipware/uact/uact"
)

func TestGenerateBranch(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		branch := uact.GenerateBranch()
		if !strings.HasPrefix(branch, uact.MagicCookie) {
			t.Fatalf("GenerateBranch() = %q, want %q prefix", branch, uact.MagicCookie)
		}
		if !uact.IsRFC3261Branch(branch) {
			t.Fatalf("IsRFC3261Branch(%q) = false, want true", branch)
		}
		if _, ok := seen[branch]; ok {
			t.Fatalf("GenerateBranch() repeated %q", branch)
		}
		seen[branch] = struct{}{}
	}
}

func TestRequestMethod_Equal(t *testing.T) {
	t.Parallel()

	m := uact.RequestMethodInvite
	if !m.Equal(uact.RequestMethodInvite) {
		t.Fatal("INVITE.Equal(INVITE) = false, want true")
	}
	if !m.Equal(uact.RequestMethod("invite")) {
		t.Fatal("INVITE.Equal(invite) = false, want true")
	}
	if m.Equal(uact.RequestMethodRegister) {
		t.Fatal("INVITE.Equal(REGISTER) = true, want false")
	}
	if m.Equal(42) {
		t.Fatal("INVITE.Equal(42) = true, want false")
	}
}

func TestResponseStatus_Classification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status      uact.ResponseStatus
		provisional bool
		successful  bool
		final       bool
	}{
		{uact.ResponseStatusTrying, true, false, false},
		{uact.ResponseStatusRinging, true, false, false},
		{uact.ResponseStatusOK, false, true, true},
		{uact.ResponseStatusRequestTimeout, false, false, true},
		{uact.ResponseStatusDecline, false, false, true},
	}
	for _, tc := range cases {
		if got := tc.status.IsProvisional(); got != tc.provisional {
			t.Fatalf("%d.IsProvisional() = %v, want %v", tc.status, got, tc.provisional)
		}
		if got := tc.status.IsSuccessful(); got != tc.successful {
			t.Fatalf("%d.IsSuccessful() = %v, want %v", tc.status, got, tc.successful)
		}
		if got := tc.status.IsFinal(); got != tc.final {
			t.Fatalf("%d.IsFinal() = %v, want %v", tc.status, got, tc.final)
		}
	}
	if uact.ResponseStatus(0).IsValid() {
		t.Fatal("0.IsValid() = true, want false")
	}
	if !uact.ResponseStatusOK.IsValid() {
		t.Fatal("200.IsValid() = false, want true")
	}
}

func TestTransactionKey(t *testing.T) {
	t.Parallel()

	var key uact.TransactionKey
	if !key.IsZero() || key.IsValid() {
		t.Fatalf("zero key: IsZero() = %v, IsValid() = %v", key.IsZero(), key.IsValid())
	}

	req := uact.NewRequest(uact.RequestMethodInvite, "z9hG4bK.abc", []byte("x"))
	key.FillFromRequest(req)
	if got, want := key.Branch, "z9hG4bK.abc"; got != want {
		t.Fatalf("key.Branch = %q, want %q", got, want)
	}
	if got, want := key.Method, "INVITE"; got != want {
		t.Fatalf("key.Method = %q, want %q", got, want)
	}
	if !key.Equal(uact.TransactionKey{Branch: "z9hG4bK.abc", Method: "invite"}) {
		t.Fatal("key.Equal(lower-case method) = false, want true")
	}
	if key.Equal(uact.TransactionKey{Branch: "z9hG4bK.other", Method: "INVITE"}) {
		t.Fatal("key.Equal(other branch) = true, want false")
	}
	if got, want := key.String(), "z9hG4bK.abc:INVITE"; got != want {
		t.Fatalf("key.String() = %q, want %q", got, want)
	}
}
