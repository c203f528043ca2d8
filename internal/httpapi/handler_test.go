package httpapi_test

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"traitforge/internal/attributes"
	"traitforge/internal/compose"
	"traitforge/internal/grant"
	"traitforge/internal/httpapi"
	"traitforge/internal/ledger"
	"traitforge/internal/listing"
	"traitforge/internal/mint"
	"traitforge/internal/pkg/clock"
	"traitforge/internal/render"
	"traitforge/testutil"
)

const goldenQuery = "?guild=Trader%20Guild&gender=Male&seed=42"

type attributesResponse struct {
	TokenID    int64                  `json:"token_id"`
	Attributes []attributes.Attribute `json:"attributes"`
}

type recordResponse struct {
	Record ledger.Record `json:"record"`
}

func setupHandler(t *testing.T, l ledger.Store, grants httpapi.GrantVerifier) *httpapi.Handler {
	t.Helper()
	store := testutil.NewTraitStore(t, true)
	planner, err := compose.NewPlanner(compose.Config{Lister: listing.NewLister(store, listing.Options{})})
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	gen, err := mint.New(mint.Config{
		Planner:  planner,
		Renderer: render.NewCompositor(store, render.Options{}),
		Ledger:   l,
	})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	return httpapi.NewHandler(gen, grants, nil)
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHandlerImage(t *testing.T) {
	h := setupHandler(t, nil, nil)
	resp := serve(h, http.MethodGet, "/api/v1/tokens/1/image"+goldenQuery, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	img, err := png.Decode(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != render.CanvasSize {
		t.Fatalf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestHandlerAttributes(t *testing.T) {
	h := setupHandler(t, nil, nil)
	resp := serve(h, http.MethodGet, "/api/v1/tokens/1/attributes"+goldenQuery, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.Code)
	}
	var body attributesResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TokenID != 1 || len(body.Attributes) != 10 || body.Attributes[6].Value != "Fez" {
		t.Fatalf("unexpected attributes %+v", body)
	}
}

func TestHandlerHexSeedReadsDigitsAsHex(t *testing.T) {
	h := setupHandler(t, ledger.NewMemory(), nil)
	for token, query := range map[int64]string{2: "?seed_hex=12345678", 3: "?seed=12345678"} {
		resp := serve(h, http.MethodPost, "/api/v1/tokens/"+strconv.FormatInt(token, 10)+"/mint"+query, nil)
		if resp.Code != http.StatusCreated {
			t.Fatalf("%s: unexpected status %d", query, resp.Code)
		}
		var minted recordResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &minted); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want := uint32(token) + 12345678
		if token == 2 {
			want = uint32(token) + 0x12345678
		}
		if minted.Record.Seed != want {
			t.Fatalf("%s: expected stream seed %d, got %d", query, want, minted.Record.Seed)
		}
	}
}

func TestHandlerRejectsBadInput(t *testing.T) {
	h := setupHandler(t, nil, nil)
	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/api/v1/tokens/abc/image", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/tokens/-1/image", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/tokens/1/image?seed=zz", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/tokens/1/image?seed_hex=zz", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/tokens/1/image?seed=1&seed_hex=ab", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/tokens/1/image", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/tokens/1/mint", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/tokens/1/other", http.StatusNotFound},
		{http.MethodGet, "/api/v1/tokens/1", http.StatusNotFound},
		{http.MethodGet, "/api/v1/datasets", http.StatusNotFound},
		{http.MethodPost, "/api/v1/tokens/1/mint", http.StatusNotImplemented},
		{http.MethodGet, "/api/v1/tokens/1/record", http.StatusNotImplemented},
	}
	for _, tc := range cases {
		if resp := serve(h, tc.method, tc.target, nil); resp.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.want, resp.Code)
		}
	}
}

func TestHandlerMintAndRecord(t *testing.T) {
	h := setupHandler(t, ledger.NewMemory(), nil)
	resp := serve(h, http.MethodPost, "/api/v1/tokens/1/mint"+goldenQuery, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", resp.Code, resp.Body.String())
	}
	var minted recordResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &minted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if minted.Record.TokenID != 1 || minted.Record.Seed != 43 || minted.Record.Digest == "" {
		t.Fatalf("unexpected record %+v", minted.Record)
	}
	if again := serve(h, http.MethodPost, "/api/v1/tokens/1/mint"+goldenQuery, nil); again.Code != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", again.Code)
	}
	got := serve(h, http.MethodGet, "/api/v1/tokens/1/record", nil)
	if got.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", got.Code)
	}
	var stored recordResponse
	if err := json.Unmarshal(got.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.Record.ID != minted.Record.ID {
		t.Fatalf("expected stored record %s, got %s", minted.Record.ID, stored.Record.ID)
	}
	if missing := serve(h, http.MethodGet, "/api/v1/tokens/2/record", nil); missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestHandlerRequiresGrant(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	iss, err := grant.NewIssuer("secret", clk)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	ver, err := grant.NewVerifier("secret", clk)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	h := setupHandler(t, nil, ver)
	target := "/api/v1/tokens/1/attributes" + goldenQuery

	if resp := serve(h, http.MethodGet, target, nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without grant, got %d", resp.Code)
	}
	wrong, err := iss.Issue(1, "Mystic Guild", "Male", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if resp := serve(h, http.MethodGet, target, http.Header{"Authorization": {"Bearer " + wrong}}); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatched grant, got %d", resp.Code)
	}
	good, err := iss.Issue(1, "Trader Guild", "Male", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if resp := serve(h, http.MethodGet, target, http.Header{"Authorization": {"Bearer " + good}}); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with grant, got %d", resp.Code)
	}
}

func TestHandlerWithoutGenerator(t *testing.T) {
	h := &httpapi.Handler{}
	if resp := serve(h, http.MethodGet, "/api/v1/tokens/1/image", nil); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
