package controllers

import (
	"net/http"

	"github.com/angelmondragon/projectmarket-backend/api/middleware"
	"github.com/angelmondragon/projectmarket-backend/api/responses"
)

type pingResponse struct {
	Scope       string `json:"scope"`
	Status      string `json:"status"`
	UserID      string `json:"user_id,omitempty"`
	AccountType string `json:"account_type,omitempty"`
}

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{Scope: "public", Status: "ok"})
	}
}

// PrivatePing echoes the caller the bearer token resolved to.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := pingResponse{Scope: "private", Status: "ok"}
		if caller, ok := middleware.CallerFromContext(r.Context()); ok {
			payload.UserID = caller.UserID
			payload.AccountType = caller.AccountType
		}
		responses.WriteSuccess(w, payload)
	}
}
