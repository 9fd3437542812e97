package rpc

import (
	"errors"
	"net/http"

	"rentchain/core"
	"rentchain/native/escrow"
)

type emergencyWithdrawParams struct {
	ID string `json:"id"`
	To string `json:"to"`
}

type escrowTransition func(n *core.Node, c core.Caller, id [32]byte) (*escrow.Account, error)

func (s *Server) escrowHandler(apply escrowTransition) handlerFunc {
	return func(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
		var params idParams
		caller, rpcErr := openEnvelope(req, &params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		id, rpcErr := parseID("id", params.ID)
		if rpcErr != nil {
			return nil, rpcErr
		}
		acct, err := apply(s.node, caller, id)
		if err != nil {
			return nil, nodeError(err)
		}
		return escrowResult(acct), nil
	}
}

func (s *Server) handleEscrowDeposit(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.escrowHandler((*core.Node).DepositSecurityAndRent)(r, req)
}

func (s *Server) handleEscrowPayRent(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.escrowHandler((*core.Node).PayRent)(r, req)
}

func (s *Server) handleEscrowRelease(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.escrowHandler((*core.Node).ReleaseDeposit)(r, req)
}

func (s *Server) handleEscrowEmergencyWithdraw(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params emergencyWithdrawParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddress("to", params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, err := s.node.EmergencyWithdraw(caller, id, to)
	if err != nil {
		return nil, nodeError(err)
	}
	return escrowResult(acct), nil
}

func (s *Server) handleEscrowGet(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	id, rpcErr := agreementIDParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, err := s.node.Escrow(id)
	if err != nil {
		return nil, nodeError(err)
	}
	return escrowResult(acct), nil
}

func (s *Server) handleEscrowHistory(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	id, rpcErr := agreementIDParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	records, err := s.node.PaymentHistory(id)
	if err != nil {
		return nil, nodeError(err)
	}
	return paymentResults(records), nil
}

// handleEscrowVerify reports a ledger mismatch in the result rather than as
// an error so auditors still see the replayed totals.
func (s *Server) handleEscrowVerify(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	id, rpcErr := agreementIDParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	totals, err := s.node.VerifyEscrow(id)
	if err != nil && !errors.Is(err, escrow.ErrLedgerMismatch) {
		return nil, nodeError(err)
	}
	return verifyResult(totals, err), nil
}

func agreementIDParam(req *RPCRequest) ([32]byte, *RPCError) {
	var params idParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return [32]byte{}, rpcErr
	}
	return parseID("id", params.ID)
}
