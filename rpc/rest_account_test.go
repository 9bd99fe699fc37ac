package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	test "github.com/resmeter/resmeter/internal/testutils"
	testobserve "github.com/resmeter/resmeter/internal/testutils/observability"
	"github.com/resmeter/resmeter/keyvaluedb/memorydb"
	"github.com/resmeter/resmeter/resource"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

func newTestServer(t *testing.T, accounts ...*state.GenesisAccount) (*http.Server, *testobserve.Observability, *state.GenesisParams) {
	t.Helper()
	s, err := state.New(memorydb.New())
	require.NoError(t, err)
	params := state.DefaultGenesisParams()
	params.GenesisTimestamp = 1_600_000_000_000
	params.TotalNetWeight = 1000
	params.TotalEnergyWeight = 1000
	params.BlackholeAddress = test.RandomAddress()
	params.Accounts = accounts
	require.NoError(t, s.DynamicProperties().Init(params))
	require.NoError(t, s.Commit())

	observe := testobserve.Default(t)
	clock := state.NewClock(s)
	bp, err := resource.NewBandwidthProcessor(s, clock, observe)
	require.NoError(t, err)
	ep, err := resource.NewEnergyProcessor(s, clock, observe)
	require.NoError(t, err)
	return NewRESTServer("", 1024, observe, AccountEndpoints(bp, ep, s, observe.Logger())), observe, params
}

func doGet(t *testing.T, srv *http.Server, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set(headerAccept, accept)
	}
	recorder := httptest.NewRecorder()
	srv.Handler.ServeHTTP(recorder, req)
	return recorder
}

func TestRESTServer_AccountResources(t *testing.T) {
	addr := test.RandomAddress()
	srv, observe, _ := newTestServer(t, &state.GenesisAccount{Address: addr, Balance: 42, FrozenBalance: 2_000_000, EnergyFrozenBalance: 1_000_000})

	t.Run("ok", func(t *testing.T) {
		rsp := doGet(t, srv, "/api/v1/accounts/"+addr.String()+"/resources", "")
		require.Equal(t, http.StatusOK, rsp.Code, rsp.Body.String())
		require.Equal(t, applicationJson, rsp.Header().Get(headerContentType))

		res := &resource.AccountResources{}
		require.NoError(t, json.NewDecoder(rsp.Body).Decode(res))
		require.Equal(t, addr, res.Address)
		require.EqualValues(t, 42, res.Balance)
		require.EqualValues(t, 2*43_200_000_000/1000, res.NetLimit)
		require.EqualValues(t, 50_000_000_000/1000, res.EnergyLimit)
		require.EqualValues(t, 5000, res.FreeNetLimit)
		require.Zero(t, res.NetUsed)

		require.EqualValues(t, 1, observe.Counter(t, "calls"))
		require.EqualValues(t, 1, observe.Counter(t, "calls",
			semconv.HTTPRouteKey.String("/api/v1/accounts/{address}/resources"),
			semconv.HTTPStatusCodeKey.Int(http.StatusOK)))
	})

	t.Run("hex address", func(t *testing.T) {
		rsp := doGet(t, srv, "/api/v1/accounts/0x"+hex.EncodeToString(addr.Bytes())+"/resources", "")
		require.Equal(t, http.StatusOK, rsp.Code, rsp.Body.String())
	})

	t.Run("CBOR", func(t *testing.T) {
		rsp := doGet(t, srv, "/api/v1/accounts/"+addr.String()+"/resources", applicationCBOR)
		require.Equal(t, http.StatusOK, rsp.Code)
		require.Equal(t, applicationCBOR, rsp.Header().Get(headerContentType))
		res := &resource.AccountResources{}
		require.NoError(t, types.Cbor.Unmarshal(rsp.Body.Bytes(), res))
		require.Equal(t, addr, res.Address)
	})

	t.Run("invalid address", func(t *testing.T) {
		rsp := doGet(t, srv, "/api/v1/accounts/foo/resources", "")
		require.Equal(t, http.StatusBadRequest, rsp.Code)
		require.Contains(t, rsp.Body.String(), "invalid address")
	})

	t.Run("unknown account", func(t *testing.T) {
		rsp := doGet(t, srv, "/api/v1/accounts/"+test.RandomAddress().String()+"/resources", "")
		require.Equal(t, http.StatusNotFound, rsp.Code)
		errRsp := &errorResponse{}
		require.NoError(t, json.NewDecoder(rsp.Body).Decode(errRsp))
		require.Contains(t, errRsp.Err, "not found")
	})
}

func TestRESTServer_Accounts(t *testing.T) {
	addr1, addr2 := test.RandomAddress(), test.RandomAddress()
	srv, _, params := newTestServer(t, &state.GenesisAccount{Address: addr1, Balance: 1}, &state.GenesisAccount{Address: addr2, Balance: 2})

	rsp := doGet(t, srv, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, rsp.Code)
	accounts := &accountsResponse{}
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(accounts))
	// genesis accounts and the blackhole
	require.Len(t, accounts.Accounts, 3)

	rsp = doGet(t, srv, "/api/v1/accounts/"+addr2.String(), "")
	require.Equal(t, http.StatusOK, rsp.Code)
	acc := &types.Account{}
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(acc))
	require.Equal(t, addr2, acc.Address)
	require.EqualValues(t, 2, acc.Balance)

	rsp = doGet(t, srv, "/api/v1/properties", "")
	require.Equal(t, http.StatusOK, rsp.Code)
	props := &propertiesResponse{}
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(props))
	require.Equal(t, params.BlackholeAddress, props.BlackholeAddress)
	require.EqualValues(t, params.TransactionFee, props.Properties[state.TransactionFee])
	require.EqualValues(t, params.GenesisTimestamp, props.Properties[state.LatestBlockHeaderTimestamp])
}

func TestRESTServer_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rsp := doGet(t, srv, "/api/v2/whatever", "")
	require.Equal(t, http.StatusNotFound, rsp.Code)
	require.Contains(t, rsp.Body.String(), "404 not found")
}

func TestRESTServer_Metrics(t *testing.T) {
	observe := testobserve.Default(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})
	srv := NewRESTServer("", 1024, observe, MetricsEndpoints(handler), MetricsEndpoints(nil))
	rsp := doGet(t, srv, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, rsp.Code)
	require.Equal(t, "metrics", rsp.Body.String())
}
