package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/skillbridge-billing/api/middleware"
	"github.com/angelmondragon/skillbridge-billing/api/responses"
	"github.com/angelmondragon/skillbridge-billing/api/validators"
	"github.com/angelmondragon/skillbridge-billing/internal/payments"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

// PaymentSubscriptionCreate starts a recurring PayPal subscription for the
// authenticated user and returns the approval URL.
func PaymentSubscriptionCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload payments.PlanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		initiation, err := svc.Initiate(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, initiation)
	}
}
