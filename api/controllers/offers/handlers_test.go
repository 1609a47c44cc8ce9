package offers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/api/middleware"
	internaloffers "github.com/angelmondragon/projectmarket-backend/internal/offers"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/types"
)

type stubOfferService struct {
	createInput internaloffers.CreateOfferInput
	listQuery   internaloffers.ListQuery
	action      enums.OfferAction
	actOfferID  uuid.UUID
	caller      uuid.UUID
	err         error
	result      *internaloffers.ActionResult
}

func (s *stubOfferService) CreateOffer(ctx context.Context, callerID uuid.UUID, input internaloffers.CreateOfferInput) (*internaloffers.OfferDTO, error) {
	s.caller = callerID
	s.createInput = input
	if s.err != nil {
		return nil, s.err
	}
	return &internaloffers.OfferDTO{ID: uuid.New(), ProjectID: input.ProjectID, Amount: input.Amount, Status: enums.OfferStatusPending}, nil
}

func (s *stubOfferService) ActOnOffer(ctx context.Context, callerID, offerID uuid.UUID, action enums.OfferAction) (*internaloffers.ActionResult, error) {
	s.caller = callerID
	s.actOfferID = offerID
	s.action = action
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubOfferService) ListOffers(ctx context.Context, callerID uuid.UUID, query internaloffers.ListQuery) (*internaloffers.OfferListDTO, error) {
	s.caller = callerID
	s.listQuery = query
	return &internaloffers.OfferListDTO{Offers: []internaloffers.OfferDTO{}}, s.err
}

func (s *stubOfferService) GetOffer(ctx context.Context, callerID, offerID uuid.UUID) (*internaloffers.OfferDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &internaloffers.OfferDTO{ID: offerID}, nil
}

func newRouter(svc internaloffers.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/offers", Create(svc, nil))
	r.Get("/api/v1/offers", List(svc, nil))
	r.Get("/api/v1/offers/{offerId}", Detail(svc, nil))
	r.Put("/api/v1/offers/{offerId}", Act(svc, nil))
	r.Patch("/api/v1/offers/{offerId}", Act(svc, nil))
	return r
}

func serve(h http.Handler, method, target, body string, userID uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body.Error.Code
}

func TestCreateOfferReturnsCreated(t *testing.T) {
	svc := &stubOfferService{}
	caller := uuid.New()
	projectID := uuid.New()

	rec := serve(newRouter(svc), http.MethodPost, "/api/v1/offers", `{"projectId":"`+projectID.String()+`","amount":33}`, caller)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.caller != caller || svc.createInput.ProjectID != projectID || svc.createInput.Amount != 33 {
		t.Fatalf("unexpected service input %+v from %s", svc.createInput, svc.caller)
	}
}

func TestCreateOfferValidatesBody(t *testing.T) {
	cases := map[string]string{
		"zero amount":    `{"projectId":"` + uuid.NewString() + `","amount":0}`,
		"fractional":     `{"projectId":"` + uuid.NewString() + `","amount":1.5}`,
		"bad project id": `{"projectId":"abc","amount":10}`,
		"unknown field":  `{"projectId":"` + uuid.NewString() + `","amount":10,"status":"accepted"}`,
		"not json":       `amount=10`,
	}
	for name, body := range cases {
		rec := serve(newRouter(&stubOfferService{}), http.MethodPost, "/api/v1/offers", body, uuid.New())
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
		if code := errorCode(t, rec); code != string(pkgerrors.CodeValidation) {
			t.Fatalf("%s: unexpected code %s", name, code)
		}
	}
}

func TestHandlersRequireCaller(t *testing.T) {
	rec := serve(newRouter(&stubOfferService{}), http.MethodGet, "/api/v1/offers", "", uuid.Nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListOffersParsesQuery(t *testing.T) {
	svc := &stubOfferService{}
	rec := serve(newRouter(svc), http.MethodGet, "/api/v1/offers?received=true&limit=5&cursor=abc", "", uuid.New())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !svc.listQuery.Received || svc.listQuery.Limit != 5 || svc.listQuery.Cursor != "abc" {
		t.Fatalf("unexpected query %+v", svc.listQuery)
	}

	rec = serve(newRouter(svc), http.MethodGet, "/api/v1/offers?received=maybe", "", uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad boolean, got %d", rec.Code)
	}
}

func TestActOnOfferAcceptAndReject(t *testing.T) {
	offerID := uuid.New()

	svc := &stubOfferService{result: &internaloffers.ActionResult{ClientSecret: "pi_1_secret"}}
	rec := serve(newRouter(svc), http.MethodPut, "/api/v1/offers/"+offerID.String(), `{"action":"accept"}`, uuid.New())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.action != enums.OfferActionAccept || svc.actOfferID != offerID {
		t.Fatalf("unexpected action %s on %s", svc.action, svc.actOfferID)
	}
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["clientSecret"] != "pi_1_secret" {
		t.Fatalf("unexpected payload %v", body.Data)
	}

	svc = &stubOfferService{result: &internaloffers.ActionResult{Success: true}}
	rec = serve(newRouter(svc), http.MethodPatch, "/api/v1/offers/"+offerID.String(), `{"action":"reject"}`, uuid.New())
	if rec.Code != http.StatusOK || svc.action != enums.OfferActionReject {
		t.Fatalf("expected reject to pass through, got %d %s", rec.Code, svc.action)
	}
}

func TestActOnOfferRejectsBadInput(t *testing.T) {
	rec := serve(newRouter(&stubOfferService{}), http.MethodPut, "/api/v1/offers/"+uuid.NewString(), `{"action":"Accept"}`, uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", rec.Code)
	}

	rec = serve(newRouter(&stubOfferService{}), http.MethodPut, "/api/v1/offers/not-a-uuid", `{"action":"accept"}`, uuid.New())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad offer id, got %d", rec.Code)
	}
}

func TestActOnOfferMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can act on this offer"), status: http.StatusForbidden},
		{err: pkgerrors.New(pkgerrors.CodeConflict, "offer already processed"), status: http.StatusConflict},
		{err: pkgerrors.New(pkgerrors.CodePrecondition, "seller not connected to payment gateway"), status: http.StatusPreconditionFailed},
		{err: pkgerrors.New(pkgerrors.CodeDependency, "create payment intent"), status: http.StatusBadGateway},
		{err: pkgerrors.New(pkgerrors.CodeNotFound, "offer not found"), status: http.StatusNotFound},
	}
	for _, tc := range cases {
		svc := &stubOfferService{err: tc.err}
		rec := serve(newRouter(svc), http.MethodPut, "/api/v1/offers/"+uuid.NewString(), `{"action":"accept"}`, uuid.New())
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestDetailReturnsOffer(t *testing.T) {
	offerID := uuid.New()
	rec := serve(newRouter(&stubOfferService{}), http.MethodGet, "/api/v1/offers/"+offerID.String(), "", uuid.New())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), offerID.String()) {
		t.Fatalf("expected offer id in body %s", rec.Body.String())
	}
}
