package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rentchain/core"
	coreerrors "rentchain/core/errors"
	"rentchain/core/genesis"
	"rentchain/core/receipts"
	"rentchain/crypto"
	"rentchain/storage"
)

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type testEnv struct {
	t        *testing.T
	node     *core.Node
	server   *Server
	admin    *crypto.PrivateKey
	landlord *crypto.PrivateKey
	nonces   map[crypto.Address]uint64
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		t:        t,
		admin:    mustKey(t),
		landlord: mustKey(t),
		nonces:   make(map[crypto.Address]uint64),
	}
	spec := &genesis.Spec{
		Admin: env.admin.Address().Hex(),
		Alloc: map[string]string{env.landlord.Address().Hex(): "1000000000"},
	}
	node, err := core.NewNode(storage.NewMemDB(), spec, core.Options{
		Now: func() int64 { return 1_700_000_000 },
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	env.node = node
	env.server = NewServer(node, cfg, nil)
	return env
}

func (e *testEnv) post(body []byte, header map[string]string) (*httptest.ResponseRecorder, testResponse) {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		e.t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func requestBody(t *testing.T, method string, params ...interface{}) []byte {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = append(raw, data)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return body
}

// signed builds a request carrying an envelope signed by key with its next
// nonce.
func (e *testEnv) signed(method string, key *crypto.PrivateKey, fields interface{}) []byte {
	e.t.Helper()
	addr := key.Address()
	env, err := SignEnvelope(method, key, e.nonces[addr], fields)
	if err != nil {
		e.t.Fatalf("sign envelope: %v", err)
	}
	e.nonces[addr]++
	return requestBody(e.t, method, env)
}

func listingFields() map[string]interface{} {
	return map[string]interface{}{
		"title":           "Harbour studio",
		"location":        "Rotterdam",
		"pricePerMonth":   "5000000000",
		"securityDeposit": "10000000000",
		"minStayDays":     30,
		"maxStayDays":     365,
	}
}

func TestPropertyCreateAndGet(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	_, resp := env.post(env.signed("property_create", env.landlord, listingFields()), nil)
	if resp.Error != nil {
		t.Fatalf("property_create: %+v", resp.Error)
	}
	var created PropertyResult
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		t.Fatalf("decode property: %v", err)
	}
	if created.Owner != env.landlord.Address().String() {
		t.Fatalf("owner = %s, want %s", created.Owner, env.landlord.Address())
	}
	if !created.IsActive || !created.IsAvailable {
		t.Fatalf("new listing should be active and available: %+v", created)
	}

	_, resp = env.post(requestBody(t, "property_get", map[string]string{"id": created.ID}), nil)
	if resp.Error != nil {
		t.Fatalf("property_get: %+v", resp.Error)
	}
	var fetched PropertyResult
	if err := json.Unmarshal(resp.Result, &fetched); err != nil {
		t.Fatalf("decode property: %v", err)
	}
	if fetched.Title != "Harbour studio" || fetched.PricePerMonth != "5000000000" {
		t.Fatalf("unexpected listing %+v", fetched)
	}

	_, resp = env.post(requestBody(t, "property_listAvailable"), nil)
	if resp.Error != nil {
		t.Fatalf("property_listAvailable: %+v", resp.Error)
	}
	var available []PropertyResult
	if err := json.Unmarshal(resp.Result, &available); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(available) != 1 || available[0].ID != created.ID {
		t.Fatalf("available listings = %+v", available)
	}
}

func TestEnvelopeRejectsForgedSigner(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	forger := mustKey(t)

	tx, err := json.Marshal(map[string]interface{}{
		"from":  env.landlord.Address().String(),
		"nonce": 0,
		"id":    "0x" + strings.Repeat("00", 32),
	})
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	sig, err := forger.Sign(crypto.Digest("property_deactivate", tx))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	body := requestBody(t, "property_deactivate", Envelope{Tx: tx, Sig: "0x" + hex.EncodeToString(sig)})
	_, resp := env.post(body, nil)
	if resp.Error == nil || resp.Error.Code != codeBadEnvelope {
		t.Fatalf("expected invalid signature, got %+v", resp.Error)
	}
	acct, err := env.node.Account(env.landlord.Address())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Nonce != 0 {
		t.Fatalf("forged envelope must not consume the nonce, got %d", acct.Nonce)
	}
}

func TestEnvelopeSignedForAnotherMethod(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	envelope, err := SignEnvelope("property_deactivate", env.landlord, 0, map[string]string{"id": "0x" + strings.Repeat("00", 32)})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, resp := env.post(requestBody(t, "property_setAvailability", envelope), nil)
	if resp.Error == nil || resp.Error.Code != codeBadEnvelope {
		t.Fatalf("replay under another method should fail, got %+v", resp.Error)
	}
}

func TestBadNonceAndFailedCall(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	envelope, err := SignEnvelope("property_create", env.landlord, 7, listingFields())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, resp := env.post(requestBody(t, "property_create", envelope), nil)
	if resp.Error == nil || resp.Error.Code != codeBadEnvelope || resp.Error.Message != "bad_nonce" {
		t.Fatalf("expected bad nonce, got %+v", resp.Error)
	}

	fields := listingFields()
	fields["minStayDays"] = 400
	_, resp = env.post(env.signed("property_create", env.landlord, fields), nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidInput {
		t.Fatalf("expected invalid input, got %+v", resp.Error)
	}
	acct, err := env.node.Account(env.landlord.Address())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Nonce != 1 {
		t.Fatalf("failed call should consume the nonce, got %d", acct.Nonce)
	}
}

func TestUnknownMethodAndMalformedRequests(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	rec, resp := env.post(requestBody(t, "property_teleport"), nil)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown method: status %d err %+v", rec.Code, resp.Error)
	}
	rec, resp = env.post([]byte("{not json"), nil)
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("parse error: status %d err %+v", rec.Code, resp.Error)
	}
	_, resp = env.post(requestBody(t, "property_get", map[string]string{"id": "0x1234"}), nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("short id: %+v", resp.Error)
	}
	_, resp = env.post(requestBody(t, "property_get", map[string]string{"id": "0x" + strings.Repeat("ab", 32)}), nil)
	if resp.Error == nil || resp.Error.Code != codeNotFound {
		t.Fatalf("missing property: %+v", resp.Error)
	}
}

func TestAdminPauseRequiresToken(t *testing.T) {
	auth := AuthConfig{HMACSecret: "test-secret", Issuer: "rentchain"}
	env := newTestEnv(t, ServerConfig{Auth: auth})

	_, resp := env.post(env.signed("admin_pause", env.admin, map[string]string{"module": "property"}), nil)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected missing token rejection, got %+v", resp.Error)
	}
	// The rejected call never reached the node.
	env.nonces[env.admin.Address()]--

	token, err := IssueAdminToken(auth, "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}
	_, resp = env.post(env.signed("admin_pause", env.admin, map[string]string{"module": "property"}), bearer)
	if resp.Error != nil {
		t.Fatalf("admin_pause: %+v", resp.Error)
	}
	var status StatusResult
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if len(status.PausedModules) != 1 || status.PausedModules[0] != "property" {
		t.Fatalf("paused modules = %v", status.PausedModules)
	}

	_, resp = env.post(env.signed("property_create", env.landlord, listingFields()), nil)
	if resp.Error == nil || resp.Error.Code != codePaused {
		t.Fatalf("expected paused, got %+v", resp.Error)
	}

	_, resp = env.post(env.signed("admin_unpause", env.landlord, map[string]string{"module": "property"}), bearer)
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("non-admin signer must be rejected, got %+v", resp.Error)
	}
}

func TestAdminOnlyMethodsRequireToken(t *testing.T) {
	auth := AuthConfig{HMACSecret: "test-secret"}
	env := newTestEnv(t, ServerConfig{Auth: auth})
	recipient := env.landlord.Address().String()

	calls := []struct {
		method string
		fields interface{}
	}{
		{"rewards_mint", map[string]string{"to": recipient, "amount": "5"}},
		{"rewards_burn", map[string]string{"account": recipient, "amount": "5"}},
		{"rewards_setConfig", map[string]string{"firstPaymentReward": "1", "reviewReward": "1", "mutualReviewBonus": "1"}},
		{"escrow_emergencyWithdraw", map[string]string{"id": "0x" + strings.Repeat("ab", 32), "to": recipient}},
	}
	for _, call := range calls {
		_, resp := env.post(env.signed(call.method, env.admin, call.fields), nil)
		if resp.Error == nil || resp.Error.Code != codeUnauthorized {
			t.Fatalf("%s without token: expected unauthorized, got %+v", call.method, resp.Error)
		}
		env.nonces[env.admin.Address()]--
	}

	token, err := IssueAdminToken(auth, "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}
	_, resp := env.post(env.signed("rewards_mint", env.admin, calls[0].fields), bearer)
	if resp.Error != nil {
		t.Fatalf("rewards_mint with token: %+v", resp.Error)
	}
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	store, err := OpenIdempotencyStore(filepath.Join(t.TempDir(), "idempotency.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	env := newTestEnv(t, ServerConfig{Idempotency: store})

	body := env.signed("property_create", env.landlord, listingFields())
	header := map[string]string{idempotencyHeader: "listing-1"}
	first, firstResp := env.post(body, header)
	if firstResp.Error != nil {
		t.Fatalf("first call: %+v", firstResp.Error)
	}
	second, secondResp := env.post(body, header)
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("second call was not replayed")
	}
	if !bytes.Equal(firstResp.Result, secondResp.Result) {
		t.Fatalf("replayed result differs")
	}
	if first.Header().Get("X-Request-ID") != second.Header().Get("X-Request-ID") {
		t.Fatalf("replay should carry the original request id")
	}
	acct, err := env.node.Account(env.landlord.Address())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Nonce != 1 {
		t.Fatalf("replay executed twice, nonce %d", acct.Nonce)
	}

	rec, resp := env.post(env.signed("property_create", env.landlord, listingFields()), header)
	if rec.Code != http.StatusConflict || resp.Error == nil {
		t.Fatalf("reused key with new body: status %d err %+v", rec.Code, resp.Error)
	}
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 2})
	for i := 0; i < 2; i++ {
		rec, _ := env.post(requestBody(t, "node_status"), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
	rec, resp := env.post(requestBody(t, "node_status"), nil)
	if rec.Code != http.StatusTooManyRequests || resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected throttle, status %d err %+v", rec.Code, resp.Error)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestNodeErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{coreerrors.ErrUnauthorized, codeUnauthorized},
		{coreerrors.ErrNotFound, codeNotFound},
		{coreerrors.ErrInvalidState, codeInvalidState},
		{coreerrors.ErrInvalidInput, codeInvalidInput},
		{coreerrors.ErrInsufficientFunds, codeInsufficientFunds},
		{coreerrors.ErrAlreadyReleased, codeAlreadyReleased},
		{coreerrors.ErrOverflow, codeArithmetic},
		{coreerrors.ErrUnderflow, codeArithmetic},
		{coreerrors.ErrAlreadyExists, codeAlreadyExists},
		{coreerrors.ErrPaused, codePaused},
		{core.ErrBadNonce, codeBadEnvelope},
		{fmt.Errorf("disk on fire"), codeServerError},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("engine: %w", tc.err)
		if got := nodeError(wrapped); got.Code != tc.code {
			t.Errorf("%v: code %d, want %d", tc.err, got.Code, tc.code)
		}
	}
}

func TestReceiptsSincePagesByHeight(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	store, err := receipts.Open(filepath.Join(t.TempDir(), "receipts.db"), nil)
	if err != nil {
		t.Fatalf("open receipts: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	env.node.SetReceiptStore(store)

	for i := 0; i < 2; i++ {
		if _, resp := env.post(env.signed("property_create", env.landlord, listingFields()), nil); resp.Error != nil {
			t.Fatalf("property_create: %+v", resp.Error)
		}
	}

	_, resp := env.post(requestBody(t, "tx_receiptsSince", map[string]interface{}{"height": 1}), nil)
	if resp.Error != nil {
		t.Fatalf("tx_receiptsSince: %+v", resp.Error)
	}
	var page []receipts.Receipt
	if err := json.Unmarshal(resp.Result, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page) != 1 || page[0].Height != 2 || page[0].Method != "property_create" || !page[0].Success {
		t.Fatalf("unexpected page %+v", page)
	}

	_, resp = env.post(requestBody(t, "tx_receiptsSince", map[string]interface{}{"height": 0, "limit": 10_000}), nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("oversized page should be rejected, got %+v", resp.Error)
	}
}
