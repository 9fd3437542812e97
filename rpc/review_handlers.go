package rpc

import (
	"net/http"

	"rentchain/native/review"
)

type reviewSubmitParams struct {
	AgreementID string `json:"agreementId"`
	Rating      uint8  `json:"rating"`
	Comment     string `json:"comment"`
}

type reviewCanSubmitParams struct {
	Reviewer    string `json:"reviewer"`
	AgreementID string `json:"agreementId"`
}

type reviewGetParams struct {
	AgreementID string `json:"agreementId"`
	Role        string `json:"role"`
}

type agreementParams struct {
	AgreementID string `json:"agreementId"`
}

func (s *Server) handleReviewSubmit(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params reviewSubmitParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("agreementId", params.AgreementID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	r, err := s.node.SubmitReview(caller, id, params.Rating, params.Comment)
	if err != nil {
		return nil, nodeError(err)
	}
	return reviewResult(r), nil
}

func (s *Server) handleReviewCanSubmit(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params reviewCanSubmitParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	reviewer, rpcErr := parseAddress("reviewer", params.Reviewer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("agreementId", params.AgreementID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	ok, err := s.node.CanSubmitReview(reviewer, id)
	if err != nil {
		return nil, nodeError(err)
	}
	return map[string]bool{"canSubmit": ok}, nil
}

func (s *Server) handleReviewGet(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params reviewGetParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("agreementId", params.AgreementID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	role, err := review.ParseRole(params.Role)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	r, err := s.node.Review(id, role)
	if err != nil {
		return nil, nodeError(err)
	}
	return reviewResult(r), nil
}

func (s *Server) handleReviewListByAgreement(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params agreementParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("agreementId", params.AgreementID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	list, err := s.node.ReviewsByAgreement(id)
	if err != nil {
		return nil, nodeError(err)
	}
	return reviewResults(list), nil
}

func (s *Server) handleReviewListByUser(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	list, summary, err := s.node.ReviewsByUser(addr)
	if err != nil {
		return nil, nodeError(err)
	}
	return UserReviewsResult{
		Reviews: reviewResults(list),
		Count:   summary.Count,
		Average: summary.Average(),
	}, nil
}

func (s *Server) handleReviewListByReviewer(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	list, err := s.node.ReviewsByReviewer(addr)
	if err != nil {
		return nil, nodeError(err)
	}
	return reviewResults(list), nil
}
