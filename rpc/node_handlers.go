package rpc

import (
	"net/http"

	"rentchain/core"
	"rentchain/core/receipts"
)

type moduleParams struct {
	Module string `json:"module"`
}

type receiptParams struct {
	Hash string `json:"hash"`
}

type receiptPageParams struct {
	Height uint64 `json:"height"`
	Limit  int    `json:"limit,omitempty"`
}

const maxReceiptPage = 500

func (s *Server) handleAdminPause(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.setPaused(req, (*core.Node).Pause)
}

func (s *Server) handleAdminUnpause(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.setPaused(req, (*core.Node).Unpause)
}

func (s *Server) setPaused(req *RPCRequest, apply func(*core.Node, core.Caller, string) error) (interface{}, *RPCError) {
	var params moduleParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireField("module", params.Module); rpcErr != nil {
		return nil, rpcErr
	}
	if err := apply(s.node, caller, params.Module); err != nil {
		return nil, nodeError(err)
	}
	return statusResult(s.node.Status()), nil
}

func (s *Server) handleAccountGet(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct, err := s.node.Account(addr)
	if err != nil {
		return nil, nodeError(err)
	}
	return accountResult(addr, acct), nil
}

func (s *Server) handleNodeStatus(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if rpcErr := noParams(req); rpcErr != nil {
		return nil, rpcErr
	}
	return statusResult(s.node.Status()), nil
}

func (s *Server) handleTxReceipt(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params receiptParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireField("hash", params.Hash); rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.node.Receipt(params.Hash)
	if err != nil {
		return nil, nodeError(err)
	}
	return receipt, nil
}

func (s *Server) handleTxReceiptsSince(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params receiptPageParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Limit < 0 || params.Limit > maxReceiptPage {
		return nil, invalidParams("limit must be between 0 and %d", maxReceiptPage)
	}
	page, err := s.node.ReceiptsSince(params.Height, params.Limit)
	if err != nil {
		return nil, nodeError(err)
	}
	if page == nil {
		page = []*receipts.Receipt{}
	}
	return page, nil
}
