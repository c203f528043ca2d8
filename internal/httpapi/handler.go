// Package httpapi exposes token generation over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"traitforge/internal/attributes"
	"traitforge/internal/grant"
	"traitforge/internal/ledger"
	"traitforge/internal/mint"
	"traitforge/internal/observability"
	"traitforge/internal/random"
)

const tokensPrefix = "/api/v1/tokens/"

// Generator is the generation surface the handler serves.
type Generator interface {
	BuildImage(ctx context.Context, tokenID int64, opts mint.Options) []byte
	BuildAttributes(ctx context.Context, tokenID int64, opts mint.Options) ([]attributes.Attribute, error)
	Mint(ctx context.Context, tokenID int64, opts mint.Options) (mint.Result, ledger.Record, error)
	Ledger() ledger.Store
}

// GrantVerifier checks a bearer grant against the request.
type GrantVerifier interface {
	Verify(grant string, tokenID int64, guild, gender string) (grant.Claims, error)
}

// Handler provides HTTP access to token images, attributes and minting.
type Handler struct {
	Generator Generator
	Grants    GrantVerifier // nil disables grant checks
	Logger    *zap.Logger
}

// NewHandler constructs a token HTTP handler.
func NewHandler(g Generator, grants GrantVerifier, logger *zap.Logger) *Handler {
	return &Handler{Generator: g, Grants: grants, Logger: observability.OrNop(logger)}
}

func (h *Handler) log() *zap.Logger { return observability.OrNop(h.Logger) }

type tokenRequest struct {
	id   int64
	opts mint.Options
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Generator == nil {
		writeError(w, http.StatusInternalServerError, "generator not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if !strings.HasPrefix(path, tokensPrefix) {
		http.NotFound(w, r)
		return
	}
	segments := strings.Split(strings.TrimPrefix(path, tokensPrefix), "/")
	if len(segments) != 2 {
		writeError(w, http.StatusNotFound, "token endpoint not found")
		return
	}
	req, err := parseTokenRequest(r, segments[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var want string
	switch segments[1] {
	case "image", "attributes", "record":
		want = http.MethodGet
	case "mint":
		want = http.MethodPost
	default:
		writeError(w, http.StatusNotFound, "token endpoint not found")
		return
	}
	if r.Method != want {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorize(w, r, req) {
		return
	}

	switch segments[1] {
	case "image":
		h.handleImage(w, r, req)
	case "attributes":
		h.handleAttributes(w, r, req)
	case "mint":
		h.handleMint(w, r, req)
	case "record":
		h.handleRecord(w, r, req)
	}
}

func parseTokenRequest(r *http.Request, rawID string) (tokenRequest, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id < 0 {
		return tokenRequest{}, errors.New("token id must be a non-negative integer")
	}
	q := r.URL.Query()
	opts := mint.Options{Guild: q.Get("guild"), Gender: q.Get("gender")}
	raw, rawHex := q.Get("seed"), q.Get("seed_hex")
	switch {
	case raw != "" && rawHex != "":
		return tokenRequest{}, errors.New("seed and seed_hex are mutually exclusive")
	case rawHex != "":
		seed, err := random.HexSeed(rawHex)
		if err != nil {
			return tokenRequest{}, err
		}
		opts.Seed = seed
	case raw != "":
		seed, err := random.ParseSeed(raw)
		if err != nil {
			return tokenRequest{}, err
		}
		opts.Seed = seed
	}
	return tokenRequest{id: id, opts: opts}, nil
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, req tokenRequest) bool {
	if h.Grants == nil {
		return true
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeError(w, http.StatusUnauthorized, "grant required")
		return false
	}
	if _, err := h.Grants.Verify(token, req.id, req.opts.Guild, req.opts.Gender); err != nil {
		h.log().Info("grant rejected", zap.Int64("token", req.id), zap.Error(err))
		writeError(w, http.StatusForbidden, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request, req tokenRequest) {
	img := h.Generator.BuildImage(r.Context(), req.id, req.opts)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *Handler) handleAttributes(w http.ResponseWriter, r *http.Request, req tokenRequest) {
	attrs, err := h.Generator.BuildAttributes(r.Context(), req.id, req.opts)
	if err != nil {
		h.log().Error("attributes failed", zap.Int64("token", req.id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "attributes unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token_id": req.id, "attributes": attrs})
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request, req tokenRequest) {
	res, rec, err := h.Generator.Mint(r.Context(), req.id, req.opts)
	switch {
	case err == nil:
	case errors.Is(err, mint.ErrNoLedger):
		writeError(w, http.StatusNotImplemented, "minting requires a ledger")
		return
	case errors.Is(err, ledger.ErrExists):
		writeError(w, http.StatusConflict, "token already minted")
		return
	default:
		h.log().Error("mint failed", zap.Int64("token", req.id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "mint failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"record":      rec,
		"attributes":  res.Attributes,
		"placeholder": res.Placeholder,
	})
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request, req tokenRequest) {
	store := h.Generator.Ledger()
	if store == nil {
		writeError(w, http.StatusNotImplemented, "no ledger configured")
		return
	}
	rec, err := store.Get(r.Context(), req.id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "token not minted")
		return
	}
	if err != nil {
		h.log().Error("ledger lookup failed", zap.Int64("token", req.id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
