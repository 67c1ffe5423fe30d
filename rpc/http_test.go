package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"sharebook/audit"
	"sharebook/core/events"
	"sharebook/crypto"
	"sharebook/native/registrar"
	"sharebook/storage"
)

const testToken = "test-token"

type testHarness struct {
	server  *Server
	handler http.Handler
	store   *storage.SnapshotStore
	owner   [20]byte
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	var owner [20]byte
	owner[19] = 0x01
	controller, err := registrar.NewController(owner)
	require.NoError(t, err)

	db := storage.NewMemDB()
	journal, err := audit.NewJournal(db, nil)
	require.NoError(t, err)
	controller.SetEmitter(events.NewMultiEmitter(journal))

	server, err := NewServer(Options{
		Controller: controller,
		Journal:    journal,
		Snapshots:  storage.NewSnapshotStore(db),
		AuthToken:  testToken,
	})
	require.NoError(t, err)
	return &testHarness{
		server:  server,
		handler: server.Router(),
		store:   storage.NewSnapshotStore(db),
		owner:   owner,
	}
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (h *testHarness) call(t *testing.T, token, method string, params interface{}) rpcEnvelope {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(encoded))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope rpcEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func (h *testHarness) mustCall(t *testing.T, method string, params interface{}) json.RawMessage {
	t.Helper()
	envelope := h.call(t, testToken, method, params)
	require.Nil(t, envelope.Error, "method %s: %+v", method, envelope.Error)
	return envelope.Result
}

func bech(b byte) string {
	var raw [20]byte
	raw[19] = b
	return crypto.MustNewAddress(raw).String()
}

func (h *testHarness) deploy(t *testing.T) {
	t.Helper()
	h.mustCall(t, "registrar_createLedger", createLedgerParams{Name: "Example Ordinary Shares", Symbol: "EXOS"})
}

func TestMutationsRequireBearerToken(t *testing.T) {
	h := newTestHarness(t)

	envelope := h.call(t, "", "registrar_createLedger", createLedgerParams{Name: "X", Symbol: "X"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)

	envelope = h.call(t, "wrong", "registrar_createLedger", createLedgerParams{Name: "X", Symbol: "X"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)

	// Queries are open.
	envelope = h.call(t, "", "registrar_status", nil)
	require.Nil(t, envelope.Error)
}

func TestRegisterLifecycleOverRPC(t *testing.T) {
	h := newTestHarness(t)
	h.deploy(t)

	h.mustCall(t, "registrar_whitelist", whitelistParams{Address: bech(0x10), Info: "alice kyc"})
	h.mustCall(t, "registrar_whitelist", whitelistParams{Address: bech(0x11), Info: "bob kyc"})
	h.mustCall(t, "registrar_issue", issueParams{Address: bech(0x10), Amount: "100"})
	h.mustCall(t, "registrar_masterTransfer", transferParams{From: bech(0x10), To: bech(0x11), Amount: "40"})

	var balance balanceResult
	require.NoError(t, json.Unmarshal(h.mustCall(t, "registry_balanceOf", addressParams{Address: bech(0x11)}), &balance))
	require.Equal(t, "40", balance.Balance)

	var count int
	require.NoError(t, json.Unmarshal(h.mustCall(t, "registry_holderCount", nil), &count))
	require.Equal(t, 2, count)

	var verified boolResult
	require.NoError(t, json.Unmarshal(h.mustCall(t, "registry_isVerified", addressParams{Address: bech(0x10)}), &verified))
	require.True(t, verified.Value)

	var info ledgerInfoResult
	require.NoError(t, json.Unmarshal(h.mustCall(t, "registry_info", nil), &info))
	require.Equal(t, "EXOS", info.Symbol)
	require.Equal(t, "100", info.TotalSupply)

	// Every acknowledged mutation left a durable snapshot behind.
	state, err := h.store.LoadLedger()
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, "100", state.TotalSupply)
}

func TestDomainErrorsCarryStableCodes(t *testing.T) {
	h := newTestHarness(t)
	h.deploy(t)
	h.mustCall(t, "registrar_whitelist", whitelistParams{Address: bech(0x10), Info: "alice kyc"})
	h.mustCall(t, "registrar_whitelist", whitelistParams{Address: bech(0x11), Info: "bob kyc"})
	h.mustCall(t, "registrar_issue", issueParams{Address: bech(0x10), Amount: "10"})

	envelope := h.call(t, testToken, "registrar_masterTransfer", transferParams{From: bech(0x10), To: bech(0x11), Amount: "10000"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codePreconditionFailed, envelope.Error.Code)

	envelope = h.call(t, testToken, "registrar_issue", issueParams{Address: bech(0x33), Amount: "10"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codePreconditionFailed, envelope.Error.Code)

	envelope = h.call(t, testToken, "registrar_issue", issueParams{Address: "garbage", Amount: "10"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeInvalidParams, envelope.Error.Code)

	envelope = h.call(t, testToken, "registrar_createLedger", createLedgerParams{Name: "Y", Symbol: "Y"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeLifecycleClosed, envelope.Error.Code)

	envelope = h.call(t, testToken, "nope_method", nil)
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeMethodNotFound, envelope.Error.Code)
}

func TestAuditEntriesExposedOverRPC(t *testing.T) {
	h := newTestHarness(t)
	h.deploy(t)
	h.mustCall(t, "registrar_whitelist", whitelistParams{Address: bech(0x10), Info: "alice kyc"})
	h.mustCall(t, "registrar_issue", issueParams{Address: bech(0x10), Amount: "100"})

	var entries []audit.Entry
	require.NoError(t, json.Unmarshal(h.mustCall(t, "audit_entries", auditRangeParams{From: 0, To: 100}), &entries))
	require.Len(t, entries, 3) // deployed, identity added, shares issued
	require.Equal(t, registrar.EventTypeDeployed, entries[0].Type)

	// Raw identity info never reaches the journal, only its fingerprint.
	for _, entry := range entries {
		for _, value := range entry.Attributes {
			require.NotContains(t, value, "alice kyc")
		}
	}
}

func TestCloseForMigrationOverRPC(t *testing.T) {
	h := newTestHarness(t)
	h.deploy(t)
	h.mustCall(t, "registrar_whitelist", whitelistParams{Address: bech(0x10), Info: "alice kyc"})
	h.mustCall(t, "registrar_issue", issueParams{Address: bech(0x10), Amount: "100"})
	h.mustCall(t, "registrar_closeForMigration", nil)

	// Mutations are permanently rejected.
	envelope := h.call(t, testToken, "registrar_issue", issueParams{Address: bech(0x10), Amount: "1"})
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeLifecycleClosed, envelope.Error.Code)

	// Read queries survive on the retained ledger handle.
	var balance balanceResult
	require.NoError(t, json.Unmarshal(h.mustCall(t, "registry_balanceOf", addressParams{Address: bech(0x10)}), &balance))
	require.Equal(t, "100", balance.Balance)

	var status statusResult
	require.NoError(t, json.Unmarshal(h.mustCall(t, "registrar_status", nil), &status))
	require.True(t, status.Closed)
}
