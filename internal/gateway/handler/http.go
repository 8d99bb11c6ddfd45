// Package handler exposes the gateway over HTTP: operation submission,
// grant creation and lookup, and the decision trail.
package handler

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	auditrepo "sessiongate/internal/audit/repository"
	"sessiongate/internal/evm"
	"sessiongate/internal/gateway"
	"sessiongate/internal/security"
	"sessiongate/internal/session/domain"
	"sessiongate/internal/session/service"
)

// Server handles the gateway HTTP API.
type Server struct {
	chainID   *big.Int
	gw        *gateway.Gateway
	registry  *service.RegistryService
	decisions auditrepo.Repository
	validate  *validator.Validate
}

// NewServer returns the HTTP handler set. decisions may be nil; then the
// decision listing endpoint returns 404.
func NewServer(chainID *big.Int, gw *gateway.Gateway, registry *service.RegistryService, decisions auditrepo.Repository) *Server {
	return &Server{
		chainID:   chainID,
		gw:        gw,
		registry:  registry,
		decisions: decisions,
		validate:  validator.New(),
	}
}

// Routes mounts the gateway API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/operations", s.SubmitOperation)
	r.Post("/v1/sessions", s.CreateSession)
	r.Get("/v1/sessions/{sessionKey}/{asset}", s.GetSession)
	r.Get("/v1/sessions/{sessionKey}/{asset}/decisions", s.ListDecisions)
}

type submitOperationRequest struct {
	Account    string `json:"account" validate:"required"`
	SessionKey string `json:"sessionKey" validate:"required"`
	Nonce      uint64 `json:"nonce"`
	Target     string `json:"target" validate:"required"`
	Value      string `json:"value"`
	Data       string `json:"data"`
	Signature  string `json:"signature" validate:"required"`
}

type rejectionResponse struct {
	Rejected bool             `json:"rejected"`
	Stage    string           `json:"stage"`
	Reason   string           `json:"reason"`
	Receipt  *gateway.Receipt `json:"receipt"`
}

// SubmitOperation accepts a signed delegated operation from a relayer and
// runs it through the gateway pipeline. An allowed operation returns the
// receipt; a denied one returns the typed rejection reason.
func (s *Server) SubmitOperation(w http.ResponseWriter, r *http.Request) {
	var req submitOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := req.toOperation()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := s.gw.Submit(r.Context(), op)
	if err != nil {
		var rej *gateway.Rejection
		if errors.As(err, &rej) {
			writeJSON(w, rejectionStatus(rej.Reason), rejectionResponse{
				Rejected: true,
				Stage:    string(rej.Stage),
				Reason:   rej.Reason,
				Receipt:  receipt,
			})
			return
		}
		log.Printf("gateway: submit failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (r *submitOperationRequest) toOperation() (*gateway.DelegatedOperation, error) {
	account, err := evm.HexToAddress(r.Account)
	if err != nil {
		return nil, errors.New("invalid account address")
	}
	sessionKey, err := evm.HexToAddress(r.SessionKey)
	if err != nil {
		return nil, errors.New("invalid session key address")
	}
	target, err := evm.HexToAddress(r.Target)
	if err != nil {
		return nil, errors.New("invalid target address")
	}
	value, err := parseAmount(r.Value)
	if err != nil {
		return nil, errors.New("invalid value")
	}
	data, err := parseHexBytes(r.Data)
	if err != nil {
		return nil, errors.New("invalid data")
	}
	sig, err := parseHexBytes(r.Signature)
	if err != nil || len(sig) != security.SignatureLength {
		return nil, errors.New("invalid signature")
	}
	return &gateway.DelegatedOperation{
		Account:    account,
		SessionKey: sessionKey,
		Nonce:      r.Nonce,
		Target:     target,
		Value:      value,
		Data:       data,
		Signature:  sig,
	}, nil
}

type createSessionRequest struct {
	Account         string `json:"account" validate:"required"`
	SessionKey      string `json:"sessionKey" validate:"required"`
	Asset           string `json:"asset"`
	ValidAfter      int64  `json:"validAfter"`
	ValidUntil      int64  `json:"validUntil" validate:"required"`
	LimitAmount     string `json:"limitAmount" validate:"required"`
	RefreshInterval int64  `json:"refreshInterval"`
	OwnerSignature  string `json:"ownerSignature" validate:"required"`
}

// CreateSession registers a session grant. The request carries the owning
// account's signature over the grant digest; the recovered signer is the
// authenticated caller, so only the account itself can authorize its
// session keys.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	grant, err := req.toGrant()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sig, err := parseHexBytes(req.OwnerSignature)
	if err != nil || len(sig) != security.SignatureLength {
		writeError(w, http.StatusBadRequest, "invalid owner signature")
		return
	}
	caller, err := security.RecoverSigner(grant.Digest(s.chainID), sig)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "owner signature does not verify")
		return
	}

	if err := s.registry.Create(r.Context(), caller, grant); err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			writeError(w, http.StatusForbidden, "caller is not the owning account")
		case errors.Is(err, domain.ErrInvalidWindow), errors.Is(err, domain.ErrInvalidLimit):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("gateway: create session failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, grantResponse(grant))
}

func (r *createSessionRequest) toGrant() (*domain.SessionGrant, error) {
	account, err := evm.HexToAddress(r.Account)
	if err != nil {
		return nil, errors.New("invalid account address")
	}
	sessionKey, err := evm.HexToAddress(r.SessionKey)
	if err != nil {
		return nil, errors.New("invalid session key address")
	}
	asset := evm.ZeroAddress
	if r.Asset != "" {
		if asset, err = evm.HexToAddress(r.Asset); err != nil {
			return nil, errors.New("invalid asset address")
		}
	}
	limit, err := parseAmount(r.LimitAmount)
	if err != nil {
		return nil, errors.New("invalid limit amount")
	}
	return &domain.SessionGrant{
		SessionKey:      sessionKey,
		Asset:           asset,
		Account:         account,
		ValidAfter:      r.ValidAfter,
		ValidUntil:      r.ValidUntil,
		LimitAmount:     limit,
		LimitUsed:       new(big.Int),
		RefreshInterval: r.RefreshInterval,
	}, nil
}

// GetSession returns the grant for a (session key, asset) pair, or 404.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionKey, asset, ok := s.pathKey(w, r)
	if !ok {
		return
	}
	grant, err := s.registry.Get(r.Context(), sessionKey, asset)
	if err != nil {
		log.Printf("gateway: get session failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if grant == nil {
		writeError(w, http.StatusNotFound, "no grant for session key and asset")
		return
	}
	writeJSON(w, http.StatusOK, grantResponse(grant))
}

// ListDecisions returns the decision trail for a (session key, asset) pair,
// newest first.
func (s *Server) ListDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		writeError(w, http.StatusNotFound, "decision log not configured")
		return
	}
	sessionKey, _, ok := s.pathKey(w, r)
	if !ok {
		return
	}
	limit := int32(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 && n <= 500 {
			limit = int32(n)
		}
	}
	list, err := s.decisions.ListBySessionKey(r.Context(), sessionKey.Hex(), limit, 0)
	if err != nil {
		log.Printf("gateway: list decisions failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) pathKey(w http.ResponseWriter, r *http.Request) (sessionKey, asset evm.Address, ok bool) {
	sessionKey, err := evm.HexToAddress(chi.URLParam(r, "sessionKey"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session key address")
		return evm.Address{}, evm.Address{}, false
	}
	asset, err = evm.HexToAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset address")
		return evm.Address{}, evm.Address{}, false
	}
	return sessionKey, asset, true
}

type grantDTO struct {
	Account         string `json:"account"`
	SessionKey      string `json:"sessionKey"`
	Asset           string `json:"asset"`
	ValidAfter      int64  `json:"validAfter"`
	ValidUntil      int64  `json:"validUntil"`
	LimitAmount     string `json:"limitAmount"`
	LimitUsed       string `json:"limitUsed"`
	LastUsed        int64  `json:"lastUsed"`
	RefreshInterval int64  `json:"refreshInterval"`
}

func grantResponse(g *domain.SessionGrant) grantDTO {
	used := "0"
	if g.LimitUsed != nil {
		used = g.LimitUsed.String()
	}
	return grantDTO{
		Account:         g.Account.Hex(),
		SessionKey:      g.SessionKey.Hex(),
		Asset:           g.Asset.Hex(),
		ValidAfter:      g.ValidAfter,
		ValidUntil:      g.ValidUntil,
		LimitAmount:     g.LimitAmount.String(),
		LimitUsed:       used,
		LastUsed:        g.LastUsed,
		RefreshInterval: g.RefreshInterval,
	}
}

func rejectionStatus(reason string) int {
	switch reason {
	case gateway.ReasonBadSignature:
		return http.StatusUnauthorized
	case gateway.ReasonUnsupportedCall, gateway.ReasonMixedValue:
		return http.StatusBadRequest
	case gateway.ReasonExecutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusForbidden
	}
}

func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.New("invalid amount")
	}
	return v, nil
}

func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
