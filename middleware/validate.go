package middleware

import (
	"encoding/json"
	"mime"
	"net/http"

	"kazi/apperrors"
	"kazi/utils"
)

// ValidateJSON decodes the JSON body into dst and runs utils.ValidateStruct.
// On failure it has already written the response.
func ValidateJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		utils.WriteMessage(w, r, http.StatusUnsupportedMediaType, apperrors.MsgUnsupportedMedia)
		return http.ErrNotSupported
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidJSON)
		return err
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: apperrors.Message(apperrors.MsgValidationFailed, utils.GetLang(r)),
			Data:    err.Error(),
		})
		return err
	}
	return nil
}
