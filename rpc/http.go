package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rentchain/core"
	coreerrors "rentchain/core/errors"
	"rentchain/core/receipts"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeBadEnvelope    = -32001
	codeRateLimited    = -32020

	codeUnauthorized      = -32030
	codeNotFound          = -32031
	codeInvalidState      = -32032
	codeInvalidInput      = -32033
	codeInsufficientFunds = -32034
	codeAlreadyReleased   = -32035
	codeArithmetic        = -32036
	codeAlreadyExists     = -32037
	codePaused            = -32038
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// handlerFunc serves one method. A nil *RPCError means result is written.
type handlerFunc func(r *http.Request, req *RPCRequest) (interface{}, *RPCError)

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func invalidParams(format string, args ...interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf(format, args...)}
}

// nodeError maps a ledger failure to its JSON-RPC code.
func nodeError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, core.ErrBadNonce) {
		return &RPCError{Code: codeBadEnvelope, Message: "bad_nonce", Data: err.Error()}
	}
	if errors.Is(err, receipts.ErrNotFound) {
		return &RPCError{Code: codeNotFound, Message: string(coreerrors.KindNotFound), Data: err.Error()}
	}
	kind := coreerrors.KindOf(err)
	code := codeServerError
	switch kind {
	case coreerrors.KindUnauthorized:
		code = codeUnauthorized
	case coreerrors.KindNotFound:
		code = codeNotFound
	case coreerrors.KindInvalidState:
		code = codeInvalidState
	case coreerrors.KindInvalidInput:
		code = codeInvalidInput
	case coreerrors.KindInsufficientFunds:
		code = codeInsufficientFunds
	case coreerrors.KindAlreadyReleased:
		code = codeAlreadyReleased
	case coreerrors.KindOverflow, coreerrors.KindUnderflow:
		code = codeArithmetic
	case coreerrors.KindAlreadyExists:
		code = codeAlreadyExists
	case coreerrors.KindPaused:
		code = codePaused
	case coreerrors.KindUnknown:
		return &RPCError{Code: codeServerError, Message: "internal_error", Data: err.Error()}
	}
	return &RPCError{Code: code, Message: string(kind), Data: err.Error()}
}

func httpStatus(code int) int {
	switch code {
	case codeParseError, codeInvalidRequest, codeInvalidParams:
		return http.StatusBadRequest
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeRateLimited:
		return http.StatusTooManyRequests
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"property_create":          s.handlePropertyCreate,
		"property_update":          s.handlePropertyUpdate,
		"property_setAvailability": s.handlePropertySetAvailability,
		"property_deactivate":      s.handlePropertyDeactivate,
		"property_get":             s.handlePropertyGet,
		"property_listByOwner":     s.handlePropertyListByOwner,
		"property_listAvailable":   s.handlePropertyListAvailable,

		"rental_request":        s.handleRentalRequest,
		"rental_approve":        s.handleRentalApprove,
		"rental_reject":         s.handleRentalReject,
		"rental_create":         s.handleRentalCreate,
		"rental_sign":           s.handleRentalSign,
		"rental_complete":       s.handleRentalComplete,
		"rental_cancel":         s.handleRentalCancel,
		"rental_expire":         s.handleRentalExpire,
		"rental_get":            s.handleRentalGet,
		"rental_listByTenant":   s.handleRentalListByTenant,
		"rental_listByLandlord": s.handleRentalListByLandlord,
		"rental_listByProperty": s.handleRentalListByProperty,

		"escrow_deposit":           s.handleEscrowDeposit,
		"escrow_payRent":           s.handleEscrowPayRent,
		"escrow_release":           s.handleEscrowRelease,
		"escrow_emergencyWithdraw": s.requireAdminToken(s.handleEscrowEmergencyWithdraw),
		"escrow_get":               s.handleEscrowGet,
		"escrow_history":           s.handleEscrowHistory,
		"escrow_verify":            s.handleEscrowVerify,

		"review_submit":          s.handleReviewSubmit,
		"review_canSubmit":       s.handleReviewCanSubmit,
		"review_get":             s.handleReviewGet,
		"review_listByAgreement": s.handleReviewListByAgreement,
		"review_listByUser":      s.handleReviewListByUser,
		"review_listByReviewer":  s.handleReviewListByReviewer,

		"rewards_balance":   s.handleRewardsBalance,
		"rewards_config":    s.handleRewardsConfig,
		"rewards_setConfig": s.requireAdminToken(s.handleRewardsSetConfig),
		"rewards_mint":      s.requireAdminToken(s.handleRewardsMint),
		"rewards_burn":      s.requireAdminToken(s.handleRewardsBurn),
		"rewards_transfer":  s.handleRewardsTransfer,

		"admin_pause":      s.requireAdminToken(s.handleAdminPause),
		"admin_unpause":    s.requireAdminToken(s.handleAdminUnpause),
		"account_get":      s.handleAccountGet,
		"node_status":      s.handleNodeStatus,
		"tx_receipt":       s.handleTxReceipt,
		"tx_receiptsSince": s.handleTxReceiptsSince,
	}
}

// handle is the JSON-RPC entry point.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message, Data: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "method required"})
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		rpcErr := &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)}
		s.metrics.Observe("unknown", rpcErr.Code, time.Since(started))
		writeError(w, http.StatusNotFound, req.ID, rpcErr)
		return
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
	)
	result, rpcErr := handler(r, req)
	if rpcErr != nil {
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", rpcErr.Code))
		if rpcErr.Code == codeServerError {
			span.SetStatus(otelcodes.Error, rpcErr.Message)
		}
		s.metrics.Observe(req.Method, rpcErr.Code, time.Since(started))
		if rpcErr.Code == codeServerError {
			s.logger.Error("rpc call failed", "method", req.Method, "error", rpcErr.Data)
		}
		writeError(w, httpStatus(rpcErr.Code), req.ID, rpcErr)
		return
	}
	s.metrics.Observe(req.Method, 0, time.Since(started))
	writeResult(w, req.ID, result)
}

// singleParam decodes the one-object parameter list most methods take.
func singleParam(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

// noParams accepts an empty parameter list or a single empty object.
func noParams(req *RPCRequest) *RPCError {
	switch len(req.Params) {
	case 0:
		return nil
	case 1:
		trimmed := bytes.TrimSpace(req.Params[0])
		if bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
			return nil
		}
	}
	return invalidParams("method takes no parameters")
}
