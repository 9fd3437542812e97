package rpc

import (
	"net/http"

	"rentchain/core"
	"rentchain/native/rental"
)

type rentalRequestParams struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	Tenant     string `json:"tenant,omitempty"`
	StartDate  uint64 `json:"startDate"`
	EndDate    uint64 `json:"endDate"`
}

func (s *Server) handleRentalRequest(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params rentalRequestParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, propertyID, rpcErr := params.ids()
	if rpcErr != nil {
		return nil, rpcErr
	}
	a, err := s.node.RequestRental(caller, id, propertyID, params.StartDate, params.EndDate)
	if err != nil {
		return nil, nodeError(err)
	}
	return agreementResult(a), nil
}

func (s *Server) handleRentalCreate(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params rentalRequestParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, propertyID, rpcErr := params.ids()
	if rpcErr != nil {
		return nil, rpcErr
	}
	tenant, rpcErr := parseAddress("tenant", params.Tenant)
	if rpcErr != nil {
		return nil, rpcErr
	}
	a, err := s.node.CreateRental(caller, id, propertyID, tenant, params.StartDate, params.EndDate)
	if err != nil {
		return nil, nodeError(err)
	}
	return agreementResult(a), nil
}

func (p rentalRequestParams) ids() ([32]byte, [32]byte, *RPCError) {
	id, rpcErr := parseID("id", p.ID)
	if rpcErr != nil {
		return id, [32]byte{}, rpcErr
	}
	propertyID, rpcErr := parseID("propertyId", p.PropertyID)
	return id, propertyID, rpcErr
}

type agreementTransition func(n *core.Node, c core.Caller, id [32]byte) (*rental.Agreement, error)

// agreementHandler serves the methods that only name an agreement.
func (s *Server) agreementHandler(apply agreementTransition) handlerFunc {
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
		a, err := apply(s.node, caller, id)
		if err != nil {
			return nil, nodeError(err)
		}
		return agreementResult(a), nil
	}
}

func (s *Server) handleRentalApprove(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementHandler((*core.Node).ApproveRental)(r, req)
}

func (s *Server) handleRentalReject(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementHandler((*core.Node).RejectRental)(r, req)
}

func (s *Server) handleRentalSign(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementHandler((*core.Node).SignRental)(r, req)
}

func (s *Server) handleRentalComplete(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementHandler((*core.Node).CompleteRental)(r, req)
}

func (s *Server) handleRentalCancel(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementHandler((*core.Node).CancelRental)(r, req)
}

func (s *Server) handleRentalExpire(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementHandler((*core.Node).ExpireRental)(r, req)
}

func (s *Server) handleRentalGet(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	a, err := s.node.Agreement(id)
	if err != nil {
		return nil, nodeError(err)
	}
	return agreementResult(a), nil
}

func (s *Server) agreementsByAddress(req *RPCRequest, list func([20]byte) ([]*rental.Agreement, error)) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	agreements, err := list(addr)
	if err != nil {
		return nil, nodeError(err)
	}
	return agreementResults(agreements), nil
}

func (s *Server) handleRentalListByTenant(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementsByAddress(req, s.node.AgreementsByTenant)
}

func (s *Server) handleRentalListByLandlord(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	return s.agreementsByAddress(req, s.node.AgreementsByLandlord)
}

func (s *Server) handleRentalListByProperty(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	agreements, err := s.node.AgreementsByProperty(id)
	if err != nil {
		return nil, nodeError(err)
	}
	return agreementResults(agreements), nil
}
