package rpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/resmeter/resmeter/resource"
	"github.com/resmeter/resmeter/state"
	"github.com/resmeter/resmeter/types"
)

type (
	propertiesResponse struct {
		_                struct{}                 `cbor:",toarray"`
		BlackholeAddress types.Address            `json:"blackholeAddress"`
		Properties       map[state.Property]int64 `json:"properties"`
	}

	accountsResponse struct {
		_        struct{}         `cbor:",toarray"`
		Accounts []*types.Account `json:"accounts"`
	}
)

/*
AccountEndpoints registers the read only account and fee schedule queries:

	GET /accounts                       committed accounts
	GET /accounts/{address}             account record
	GET /accounts/{address}/resources   bandwidth and energy as of the head slot
	GET /properties                     dynamic properties
*/
func AccountEndpoints(bp *resource.BandwidthProcessor, ep *resource.EnergyProcessor, s *state.State, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/accounts", getAccounts(s, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/accounts/{address}", getAccount(s, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/accounts/{address}/resources", getAccountResources(bp, ep, log)).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc("/properties", getProperties(s, log)).Methods(http.MethodGet, http.MethodOptions)
	}
}

func getAccounts(s *state.State, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.Accounts()
		if err != nil {
			writeError(w, r, fmt.Errorf("reading accounts: %w", err), http.StatusInternalServerError, log)
			return
		}
		writeResponse(w, r, &accountsResponse{Accounts: accounts}, http.StatusOK, log)
	}
}

func getAccount(s *state.State, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := types.ParseAddress(mux.Vars(r)["address"])
		if err != nil {
			writeError(w, r, fmt.Errorf("invalid address: %w", err), http.StatusBadRequest, log)
			return
		}
		acc, err := s.GetAccount(addr)
		if err != nil {
			writeError(w, r, err, errorStatus(err), log)
			return
		}
		writeResponse(w, r, acc, http.StatusOK, log)
	}
}

func getAccountResources(bp *resource.BandwidthProcessor, ep *resource.EnergyProcessor, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := types.ParseAddress(mux.Vars(r)["address"])
		if err != nil {
			writeError(w, r, fmt.Errorf("invalid address: %w", err), http.StatusBadRequest, log)
			return
		}
		res, err := resource.QueryAccountResources(bp, ep, addr)
		if err != nil {
			writeError(w, r, err, errorStatus(err), log)
			return
		}
		writeResponse(w, r, res, http.StatusOK, log)
	}
}

func getProperties(s *state.State, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dp := s.DynamicProperties()
		props, err := dp.All()
		if err != nil {
			writeError(w, r, err, http.StatusInternalServerError, log)
			return
		}
		blackhole, err := dp.BlackholeAddress()
		if err != nil {
			writeError(w, r, err, http.StatusInternalServerError, log)
			return
		}
		writeResponse(w, r, &propertiesResponse{BlackholeAddress: blackhole, Properties: props}, http.StatusOK, log)
	}
}

func errorStatus(err error) int {
	if errors.Is(err, state.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
