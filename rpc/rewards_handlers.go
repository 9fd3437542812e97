package rpc

import (
	"math/big"
	"net/http"

	"rentchain/core"
	"rentchain/native/rewards"
)

type rewardsConfigParams struct {
	FirstPaymentReward string `json:"firstPaymentReward"`
	ReviewReward       string `json:"reviewReward"`
	MutualReviewBonus  string `json:"mutualReviewBonus"`
}

type rewardsAmountParams struct {
	Account string `json:"account,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount"`
}

func (s *Server) handleRewardsBalance(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, supply, err := s.node.RewardsBalance(addr)
	if err != nil {
		return nil, nodeError(err)
	}
	return RewardsBalanceResult{
		Address:     address(addr),
		Balance:     amountString(balance),
		TotalSupply: amountString(supply),
		Symbol:      rewards.TokenSymbol,
		Decimals:    rewards.TokenDecimals,
	}, nil
}

func (s *Server) handleRewardsConfig(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if rpcErr := noParams(req); rpcErr != nil {
		return nil, rpcErr
	}
	cfg, err := s.node.RewardsConfig()
	if err != nil {
		return nil, nodeError(err)
	}
	return rewardsConfigResult(cfg), nil
}

func (s *Server) handleRewardsSetConfig(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params rewardsConfigParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cfg := &rewards.Config{}
	fields := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"firstPaymentReward", params.FirstPaymentReward, &cfg.FirstPaymentReward},
		{"reviewReward", params.ReviewReward, &cfg.ReviewReward},
		{"mutualReviewBonus", params.MutualReviewBonus, &cfg.MutualReviewBonus},
	}
	for _, f := range fields {
		v, rpcErr := parseAmount(f.name, f.raw)
		if rpcErr != nil {
			return nil, rpcErr
		}
		*f.dst = v
	}
	if err := s.node.SetRewardsConfig(caller, cfg); err != nil {
		return nil, nodeError(err)
	}
	return rewardsConfigResult(cfg), nil
}

type rewardsMove func(n *core.Node, c core.Caller, addr [20]byte, amount *big.Int) error

func (s *Server) rewardsHandler(field string, apply rewardsMove) handlerFunc {
	return func(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
		var params rewardsAmountParams
		caller, rpcErr := openEnvelope(req, &params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		raw := params.To
		if field == "account" {
			raw = params.Account
		}
		addr, rpcErr := parseAddress(field, raw)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := parseAmount("amount", params.Amount)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := apply(s.node, caller, addr, amount); err != nil {
			return nil, nodeError(err)
		}
		return OKResult{OK: true}, nil
	}
}

func (s *Server) handleRewardsMint(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.rewardsHandler("to", (*core.Node).MintRewards)(r, req)
}

func (s *Server) handleRewardsBurn(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.rewardsHandler("account", (*core.Node).BurnRewards)(r, req)
}

func (s *Server) handleRewardsTransfer(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.rewardsHandler("to", (*core.Node).TransferRewards)(r, req)
}
