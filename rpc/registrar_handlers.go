package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	"sharebook/crypto"
	"sharebook/observability/logging"
)

type method struct {
	mutating bool
	fn       func(params []json.RawMessage) (interface{}, *rpcError)
}

// decodeParams unmarshals the first positional parameter into dest. Methods
// without parameters accept an absent or empty list.
func decodeParams(params []json.RawMessage, dest interface{}) *rpcError {
	if dest == nil {
		return nil
	}
	if len(params) == 0 {
		return invalidParams(fmt.Errorf("missing params object"))
	}
	if err := json.Unmarshal(params[0], dest); err != nil {
		return invalidParams(fmt.Errorf("malformed params: %w", err))
	}
	return nil
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"registrar_createLedger":      {mutating: true, fn: s.createLedger},
		"registrar_whitelist":         {mutating: true, fn: s.whitelist},
		"registrar_removeWhitelist":   {mutating: true, fn: s.removeWhitelist},
		"registrar_updateWhitelist":   {mutating: true, fn: s.updateWhitelist},
		"registrar_issue":             {mutating: true, fn: s.issue},
		"registrar_masterTransfer":    {mutating: true, fn: s.masterTransfer},
		"registrar_burn":              {mutating: true, fn: s.burn},
		"registrar_toggleFreeze":      {mutating: true, fn: s.toggleFreeze},
		"registrar_toggleLock":        {mutating: true, fn: s.toggleLock},
		"registrar_cancelAndReissue":  {mutating: true, fn: s.cancelAndReissue},
		"registrar_migrateRecord":     {mutating: true, fn: s.migrateRecord},
		"registrar_finishMigration":   {mutating: true, fn: s.finishMigration},
		"registrar_closeForMigration": {mutating: true, fn: s.closeForMigration},
		"registrar_status":            {fn: s.status},

		"registry_info":              {fn: s.ledgerInfo},
		"registry_isVerified":        {fn: s.isVerified},
		"registry_isHolder":          {fn: s.isHolder},
		"registry_hasFingerprint":    {fn: s.hasFingerprint},
		"registry_balanceOf":         {fn: s.balanceOf},
		"registry_holderCount":       {fn: s.holderCount},
		"registry_holderAt":          {fn: s.holderAt},
		"registry_holders":           {fn: s.holdersList},
		"registry_isSuperseded":      {fn: s.isSuperseded},
		"registry_currentAddressFor": {fn: s.currentAddressFor},
		"registry_isLocked":          {fn: s.isLocked},

		"audit_entries": {fn: s.auditEntries},
	}
}

// caller returns the identity owner-gated operations run under. The bearer
// token authenticates the operator; the controller's recorded owner is the
// acting identity.
func (s *Server) caller() [20]byte {
	return s.controller.Owner()
}

func (s *Server) createLedger(params []json.RawMessage) (interface{}, *rpcError) {
	var p createLedgerParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.controller.CreateLedger(s.caller(), p.Name, p.Symbol); err != nil {
		return nil, domainError(err)
	}
	s.setLedger(s.controller.Ledger())
	return boolResult{Value: true}, nil
}

func (s *Server) whitelist(params []json.RawMessage) (interface{}, *rpcError) {
	var p whitelistParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.Whitelist(s.caller(), addr, p.Info); err != nil {
		return nil, domainError(err)
	}
	s.logger.Info("address whitelisted",
		slog.String("address", p.Address),
		logging.MaskField("info", p.Info))
	return boolResult{Value: true}, nil
}

func (s *Server) removeWhitelist(params []json.RawMessage) (interface{}, *rpcError) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.RemoveWhitelist(s.caller(), addr); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) updateWhitelist(params []json.RawMessage) (interface{}, *rpcError) {
	var p whitelistParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.UpdateWhitelist(s.caller(), addr, p.Info); err != nil {
		return nil, domainError(err)
	}
	s.logger.Info("whitelist entry updated",
		slog.String("address", p.Address),
		logging.MaskField("info", p.Info))
	return boolResult{Value: true}, nil
}

func (s *Server) issue(params []json.RawMessage) (interface{}, *rpcError) {
	var p issueParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := amountParam(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.Issue(s.caller(), addr, amount); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) masterTransfer(params []json.RawMessage) (interface{}, *rpcError) {
	var p transferParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	from, err := addressParam(p.From)
	if err != nil {
		return nil, invalidParams(err)
	}
	to, err := addressParam(p.To)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := amountParam(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.MasterTransfer(s.caller(), from, to, amount); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) burn(params []json.RawMessage) (interface{}, *rpcError) {
	var p issueParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := amountParam(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.Burn(s.caller(), addr, amount); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) toggleFreeze(params []json.RawMessage) (interface{}, *rpcError) {
	frozen, err := s.controller.ToggleFreeze(s.caller())
	if err != nil {
		return nil, domainError(err)
	}
	return toggleResult{Enabled: frozen}, nil
}

func (s *Server) toggleLock(params []json.RawMessage) (interface{}, *rpcError) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	locked, err := s.controller.ToggleLock(s.caller(), addr)
	if err != nil {
		return nil, domainError(err)
	}
	return toggleResult{Enabled: locked}, nil
}

func (s *Server) cancelAndReissue(params []json.RawMessage) (interface{}, *rpcError) {
	var p cancelParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	original, err := addressParam(p.Original)
	if err != nil {
		return nil, invalidParams(err)
	}
	replacement, err := addressParam(p.Replacement)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.controller.CancelAndReissue(s.caller(), original, replacement); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) migrateRecord(params []json.RawMessage) (interface{}, *rpcError) {
	var p migrateRecordParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := addressParam(p.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	balance := new(big.Int)
	if p.Balance != "" {
		balance, err = amountParam(p.Balance)
		if err != nil {
			return nil, invalidParams(err)
		}
	}
	if err := s.controller.MigrateRecord(s.caller(), addr, p.Info, balance); err != nil {
		return nil, domainError(err)
	}
	s.logger.Info("record migrated",
		slog.String("address", p.Address),
		logging.MaskField("info", p.Info))
	return boolResult{Value: true}, nil
}

func (s *Server) finishMigration(params []json.RawMessage) (interface{}, *rpcError) {
	var p finishMigrationParams
	if len(params) > 0 {
		if rpcErr := decodeParams(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
	}
	var newOwner [20]byte
	if p.NewOwner != "" {
		decoded, err := addressParam(p.NewOwner)
		if err != nil {
			return nil, invalidParams(err)
		}
		newOwner = decoded
	}
	if err := s.controller.FinishMigration(s.caller(), newOwner); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) closeForMigration(params []json.RawMessage) (interface{}, *rpcError) {
	if err := s.controller.CloseForMigration(s.caller()); err != nil {
		return nil, domainError(err)
	}
	return boolResult{Value: true}, nil
}

func (s *Server) status(params []json.RawMessage) (interface{}, *rpcError) {
	return statusResult{
		Deployed: s.controller.Deployed(),
		Migrated: s.controller.Migrated(),
		Closed:   s.controller.Closed(),
		Owner:    crypto.MustNewAddress(s.controller.Owner()).String(),
	}, nil
}

func (s *Server) auditEntries(params []json.RawMessage) (interface{}, *rpcError) {
	if s.journal == nil {
		return nil, &rpcError{Code: codeServerError, Message: "audit journal not configured"}
	}
	var p auditRangeParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	entries, err := s.journal.Range(p.From, p.To)
	if err != nil {
		return nil, &rpcError{Code: codeServerError, Message: err.Error()}
	}
	return entries, nil
}
