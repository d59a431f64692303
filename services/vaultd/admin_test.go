package vaultd

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ogazboiz/sonic-rush/vault"
)

func newTestServer(t *testing.T) (*Server, *Mirror, *Identity, *fakeSubmitter) {
	t.Helper()
	identity := NewIdentity(common.Address{})
	mirror := newTestMirror(t, identity)
	submitter := &fakeSubmitter{}
	coordinator := NewCoordinator(time.Millisecond, nil)
	tracker := NewTracker(newFakeFinality(), time.Millisecond, 0)
	controller := NewController(submitter, tracker, coordinator, &fakeNotifier{}, nil)
	server := NewServer(mirror, controller, coordinator, identity, RateLimitConfig{RequestsPerMinute: 600, Burst: 100}, nil)
	return server, mirror, identity, submitter
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestServerHealth(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	rec := doRequest(t, server, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestServerVaultSnapshot(t *testing.T) {
	server, mirror, _, _ := newTestServer(t)
	seed(mirror.Stats, vault.VaultStats{
		TotalStaked:  big.NewInt(1000),
		RewardPool:   big.NewInt(42),
		TotalStreams: big.NewInt(3),
	})

	rec := doRequest(t, server, http.MethodGet, "/vault", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	stats, ok := resp["stats"]
	if !ok {
		t.Fatalf("missing stats in %s", rec.Body)
	}
	if stats["reward_pool"] != "42" {
		t.Fatalf("unexpected reward pool %q", stats["reward_pool"])
	}
}

func TestServerStakeRequiresIdentity(t *testing.T) {
	server, mirror, identity, _ := newTestServer(t)
	rec := doRequest(t, server, http.MethodGet, "/stake", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without identity, got %d", rec.Code)
	}

	identity.Set(common.HexToAddress("0x00000000000000000000000000000000000000a1"))
	seed(mirror.Stake, vault.Stake{
		Amount:             big.NewInt(100),
		AccumulatedRewards: big.NewInt(0),
		IsActive:           true,
	})
	seed(mirror.Stats, vault.VaultStats{
		TotalStaked:  big.NewInt(1000),
		RewardPool:   big.NewInt(50),
		TotalStreams: big.NewInt(0),
	})

	rec = doRequest(t, server, http.MethodGet, "/stake", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["projected_share"] != "5" {
		t.Fatalf("unexpected projected share %v", resp["projected_share"])
	}
}

func TestServerActionSubmission(t *testing.T) {
	server, _, _, submitter := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/actions/stake", `{"amount":"250"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var resp pendingJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != string(KindStake) || resp.Status != string(StatusAwaiting) {
		t.Fatalf("unexpected pending record %+v", resp)
	}
	if submitter.count() != 1 {
		t.Fatalf("expected one dispatch, got %d", submitter.count())
	}
}

func TestServerActionValidation(t *testing.T) {
	server, _, _, submitter := newTestServer(t)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"malformed amount", "/actions/stake", `{"amount":"not-a-number"}`, http.StatusBadRequest},
		{"malformed recipient", "/actions/create-stream", `{"recipient":"xyz","amount":"10","duration":60}`, http.StatusBadRequest},
		{"rejected payload", "/actions/stake", `{"amount":"0"}`, http.StatusBadRequest},
		{"unknown kind", "/actions/transmogrify", `{}`, http.StatusBadRequest},
		{"invalid body", "/actions/stake", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body)
			}
		})
	}
	if submitter.count() != 0 {
		t.Fatalf("rejected actions must not dispatch, got %d", submitter.count())
	}
}

func TestServerIdentityEndpoints(t *testing.T) {
	server, _, identity, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/identity", `{"address":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed address, got %d", rec.Code)
	}

	addr := "0x00000000000000000000000000000000000000A1"
	rec = doRequest(t, server, http.MethodPost, "/identity", `{"address":"`+addr+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if _, ok := identity.Current(); !ok {
		t.Fatal("expected identity installed")
	}

	rec = doRequest(t, server, http.MethodDelete, "/identity", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := identity.Current(); ok {
		t.Fatal("expected identity cleared")
	}
}

func TestServerStatusListsPending(t *testing.T) {
	server, _, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/actions/withdraw", `{"stream_id":"7"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, server, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp struct {
		RefreshGeneration uint64        `json:"refresh_generation"`
		Pending           []pendingJSON `json:"pending"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Pending) != 1 {
		t.Fatalf("expected one pending request, got %d", len(resp.Pending))
	}
	if resp.Pending[0].Kind != string(KindWithdraw) {
		t.Fatalf("unexpected pending kind %q", resp.Pending[0].Kind)
	}
}
