package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	_ = writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as an ErrorEnvelope. Client errors (4xx) expose the
// typed message; server errors fall back to the code's public message.
// Untyped errors are reported as internal.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if meta.HTTPStatus < http.StatusInternalServerError && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, errorFields(err, typed))
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	if encErr := writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr}); encErr != nil && logg != nil {
		logg.Error(ctx, "failed to encode error response", encErr)
	}
}

func errorFields(err error, typed *pkgerrors.Error) map[string]any {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
	}
	if dump.PG != nil {
		fields["pg"] = dump.PG
	}
	if dm, ok := typed.Details().(map[string]any); ok {
		if step, ok := dm["step"]; ok {
			fields["step"] = step
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
