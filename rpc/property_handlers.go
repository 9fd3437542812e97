package rpc

import (
	"net/http"

	"rentchain/native/property"
)

type listingParams struct {
	Owner           string `json:"owner,omitempty"`
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Location        string `json:"location"`
	PricePerMonth   string `json:"pricePerMonth"`
	SecurityDeposit string `json:"securityDeposit"`
	MinStayDays     uint32 `json:"minStayDays"`
	MaxStayDays     uint32 `json:"maxStayDays"`
	ImageURL        string `json:"imageUrl"`
}

func (p listingParams) listing() (property.Listing, *RPCError) {
	price, rpcErr := parseAmount("pricePerMonth", p.PricePerMonth)
	if rpcErr != nil {
		return property.Listing{}, rpcErr
	}
	deposit, rpcErr := parseAmount("securityDeposit", p.SecurityDeposit)
	if rpcErr != nil {
		return property.Listing{}, rpcErr
	}
	return property.Listing{
		Title:           p.Title,
		Description:     p.Description,
		Location:        p.Location,
		PricePerMonth:   price,
		SecurityDeposit: deposit,
		MinStayDays:     p.MinStayDays,
		MaxStayDays:     p.MaxStayDays,
		ImageURL:        p.ImageURL,
	}, nil
}

type idParams struct {
	ID string `json:"id"`
}

type availabilityParams struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

type addressParams struct {
	Address string `json:"address"`
}

func (s *Server) handlePropertyCreate(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params listingParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner := caller.From
	if params.Owner != "" {
		if owner, rpcErr = parseAddress("owner", params.Owner); rpcErr != nil {
			return nil, rpcErr
		}
	}
	listing, rpcErr := params.listing()
	if rpcErr != nil {
		return nil, rpcErr
	}
	created, err := s.node.CreateProperty(caller, owner, listing)
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResult(created), nil
}

func (s *Server) handlePropertyUpdate(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params listingParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, rpcErr := params.listing()
	if rpcErr != nil {
		return nil, rpcErr
	}
	updated, err := s.node.UpdateProperty(caller, id, listing)
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResult(updated), nil
}

func (s *Server) handlePropertySetAvailability(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params availabilityParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	updated, err := s.node.SetPropertyAvailability(caller, id, params.Available)
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResult(updated), nil
}

func (s *Server) handlePropertyDeactivate(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	caller, rpcErr := openEnvelope(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	updated, err := s.node.DeactivateProperty(caller, id)
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResult(updated), nil
}

func (s *Server) handlePropertyGet(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params idParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseID("id", params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	p, err := s.node.Property(id)
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResult(p), nil
}

func (s *Server) handlePropertyListByOwner(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := singleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddress("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	list, err := s.node.PropertiesByOwner(owner)
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResults(list), nil
}

func (s *Server) handlePropertyListAvailable(_ *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if rpcErr := noParams(req); rpcErr != nil {
		return nil, rpcErr
	}
	list, err := s.node.AvailableProperties()
	if err != nil {
		return nil, nodeError(err)
	}
	return propertyResults(list), nil
}
