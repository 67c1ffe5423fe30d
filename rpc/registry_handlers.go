package rpc

import (
	"encoding/json"

	"sharebook/crypto"
	"sharebook/native/registry"
)

// queryLedger resolves the ledger handle for read queries, which stay
// available after the controller closes.
func (s *Server) queryLedger() (*registry.Ledger, *rpcError) {
	if ledger := s.readLedger(); ledger != nil {
		return ledger, nil
	}
	if ledger := s.controller.Ledger(); ledger != nil {
		s.setLedger(ledger)
		return ledger, nil
	}
	return nil, &rpcError{Code: codeLifecycleClosed, Message: "ledger not deployed"}
}

func (s *Server) ledgerInfo(params []json.RawMessage) (interface{}, *rpcError) {
	ledger, rpcErr := s.queryLedger()
	if rpcErr != nil {
		return nil, rpcErr
	}
	return ledgerInfoResult{
		Name:        ledger.Name(),
		Symbol:      ledger.Symbol(),
		TotalSupply: ledger.TotalSupply().String(),
		HolderCount: ledger.HolderCount(),
		Frozen:      ledger.IsFrozen(),
		Closed:      ledger.IsClosed(),
	}, nil
}

func (s *Server) addressQuery(params []json.RawMessage) ([20]byte, *registry.Ledger, *rpcError) {
	ledger, rpcErr := s.queryLedger()
	if rpcErr != nil {
		return [20]byte{}, nil, rpcErr
	}
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return [20]byte{}, nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return [20]byte{}, nil, invalidParams(err)
	}
	return addr, ledger, nil
}

func (s *Server) isVerified(params []json.RawMessage) (interface{}, *rpcError) {
	addr, ledger, rpcErr := s.addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return boolResult{Value: ledger.IsVerified(addr)}, nil
}

func (s *Server) isHolder(params []json.RawMessage) (interface{}, *rpcError) {
	addr, ledger, rpcErr := s.addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return boolResult{Value: ledger.IsHolder(addr)}, nil
}

func (s *Server) isSuperseded(params []json.RawMessage) (interface{}, *rpcError) {
	addr, ledger, rpcErr := s.addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return boolResult{Value: ledger.IsSuperseded(addr)}, nil
}

func (s *Server) isLocked(params []json.RawMessage) (interface{}, *rpcError) {
	addr, ledger, rpcErr := s.addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return boolResult{Value: ledger.IsLocked(addr)}, nil
}

func (s *Server) hasFingerprint(params []json.RawMessage) (interface{}, *rpcError) {
	ledger, rpcErr := s.queryLedger()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p fingerprintParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	fingerprint, err := crypto.ParseFingerprint(p.Fingerprint)
	if err != nil {
		return nil, invalidParams(err)
	}
	return boolResult{Value: ledger.HasFingerprint(addr, fingerprint)}, nil
}

func (s *Server) balanceOf(params []json.RawMessage) (interface{}, *rpcError) {
	addr, ledger, rpcErr := s.addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return balanceResult{
		Address: crypto.MustNewAddress(addr).String(),
		Balance: ledger.BalanceOf(addr).String(),
	}, nil
}

func (s *Server) holderCount(params []json.RawMessage) (interface{}, *rpcError) {
	ledger, rpcErr := s.queryLedger()
	if rpcErr != nil {
		return nil, rpcErr
	}
	return ledger.HolderCount(), nil
}

func (s *Server) holderAt(params []json.RawMessage) (interface{}, *rpcError) {
	ledger, rpcErr := s.queryLedger()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var p holderAtParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	holder, err := ledger.HolderAt(p.Index)
	if err != nil {
		return nil, domainError(err)
	}
	return addressResult{Address: crypto.MustNewAddress(holder).String()}, nil
}

func (s *Server) holdersList(params []json.RawMessage) (interface{}, *rpcError) {
	ledger, rpcErr := s.queryLedger()
	if rpcErr != nil {
		return nil, rpcErr
	}
	raw := ledger.Holders()
	holders := make([]string, 0, len(raw))
	for _, holder := range raw {
		holders = append(holders, crypto.MustNewAddress(holder).String())
	}
	return holders, nil
}

func (s *Server) currentAddressFor(params []json.RawMessage) (interface{}, *rpcError) {
	addr, ledger, rpcErr := s.addressQuery(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	resolved, err := ledger.CurrentAddressFor(addr)
	if err != nil {
		return nil, &rpcError{Code: codeServerError, Message: err.Error()}
	}
	return addressResult{Address: crypto.MustNewAddress(resolved).String()}, nil
}
