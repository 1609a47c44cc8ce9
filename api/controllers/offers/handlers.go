package offers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/api/middleware"
	"github.com/angelmondragon/projectmarket-backend/api/responses"
	"github.com/angelmondragon/projectmarket-backend/api/validators"
	internaloffers "github.com/angelmondragon/projectmarket-backend/internal/offers"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/pagination"
)

type createOfferRequest struct {
	ProjectID string `json:"projectId" validate:"required,uuid"`
	Amount    int64  `json:"amount" validate:"required,min=1"`
}

type actOnOfferRequest struct {
	Action string `json:"action" validate:"required,offer_action"`
}

// Create places a pending offer on a project for the caller.
func Create(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		callerID, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body createOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		projectID, err := uuid.Parse(strings.TrimSpace(body.ProjectID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid projectId"))
			return
		}

		offer, err := svc.CreateOffer(ctx, callerID, internaloffers.CreateOfferInput{
			ProjectID: projectID,
			Amount:    body.Amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// List returns offers the caller made, or with received=true the offers on
// the caller's projects.
func List(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		callerID, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		received, err := validators.ParseQueryBool(r, "received", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListOffers(ctx, callerID, internaloffers.ListQuery{
			Received: received,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
			Limit:    limit,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one offer visible to its buyer or the project's seller.
func Detail(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		callerID, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offerID, err := offerIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		offer, err := svc.GetOffer(ctx, callerID, offerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// Act lets the project's seller accept or reject a pending offer.
func Act(svc internaloffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		callerID, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offerID, err := offerIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body actOnOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		action, err := enums.ParseOfferAction(body.Action)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "action must be accept or reject"))
			return
		}

		result, err := svc.ActOnOffer(ctx, callerID, offerID, action)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func callerFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return id, nil
}

func offerIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "offerId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid offer id")
	}
	return id, nil
}
