package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/skillswap/chat-server/internal/errors"
	"github.com/skillswap/chat-server/internal/httputil"
	"github.com/skillswap/chat-server/internal/util"
)

var validate = util.NewValidator()

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// decodeJSON reads the request body into dst and validates its tags.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.ValidationError("Request body too large")
		}
		return apperrors.ValidationError("Invalid request body").WithCause(err)
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.ValidationError("Invalid request").WithDetails(util.ValidationDetails(err))
		}
		return apperrors.ValidationError("Invalid request").WithCause(err)
	}
	return nil
}
