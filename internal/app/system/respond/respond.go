// Package respond writes JSON responses and maps domain errors to HTTP
// status codes.
package respond

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/dalemusser/tenantgate/internal/app/system/identity"
	"github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Contact string `json:"contact,omitempty"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an ErrorBody.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: code, Message: message})
}

type mapping struct {
	target  error
	status  int
	code    string
	message string
}

var table = []mapping{
	{models.ErrInvitationNotFound, http.StatusNotFound, "invitation_not_found", "This invitation does not exist or has expired."},
	{models.ErrInvitationAlreadyAccepted, http.StatusConflict, "invitation_already_accepted", "This invitation has already been used."},
	{models.ErrInvalidLicense, http.StatusForbidden, "invalid_license", "This organization's license does not currently allow access."},
	{models.ErrNoAccess, http.StatusForbidden, "no_access", "You do not have access to this organization."},
	{models.ErrRegistrationFailed, http.StatusBadRequest, "registration_failed", "Registration failed. Please try again."},
	{models.ErrAcceptTransitionFailed, http.StatusInternalServerError, "accept_failed", "We could not finish adding you to the organization. Please try again."},
	{invitations.ErrInvalidEmail, http.StatusBadRequest, "invalid_email", "A valid email address is required."},
	{invitations.ErrInvalidRole, http.StatusBadRequest, "invalid_role", "Invitations may grant the admin or user role only."},
	{invitations.ErrOrganizationAbsent, http.StatusNotFound, "organization_not_found", "Organization not found."},
	{invitations.ErrNotAccepted, http.StatusConflict, "invitation_not_accepted", "This invitation has not been accepted yet."},
	{identity.ErrUserExists, http.StatusConflict, "user_exists", "An account with this email already exists. Sign in to accept the invitation."},
	{identity.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password."},
	{identity.ErrWeakPassword, http.StatusBadRequest, "weak_password", "Please choose a stronger password."},
	{identity.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "Your confirmation link is invalid or has expired."},
	{identity.ErrUnavailable, http.StatusServiceUnavailable, "identity_unavailable", "Sign-in is temporarily unavailable. Please try again shortly."},
}

// Status returns the HTTP status and error code for err.
func Status(err error) (int, string) {
	for _, m := range table {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// FromError writes the mapped response for err. Unmapped errors are logged
// and answered with a generic 500.
func FromError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, m := range table {
		if errors.Is(err, m.target) {
			Error(w, m.status, m.code, m.message)
			return
		}
	}
	if log != nil {
		log.Error("request failed", zap.Error(err))
	}
	Error(w, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
}

// WantsJSON reports whether the caller is an API client rather than a
// browser navigation.
func WantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// Decode reads a JSON body into v. Form posts are handed to fromForm
// instead, which reads the fields it needs.
func Decode(w http.ResponseWriter, r *http.Request, v any, fromForm func(get func(string) string)) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if fromForm != nil && (mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data") {
		fromForm(r.PostFormValue)
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
