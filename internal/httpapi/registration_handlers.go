package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ccaccess.org/internal/audit"
	"ccaccess.org/internal/crypt"
	"ccaccess.org/internal/identity"
	"ccaccess.org/internal/obs"
	"ccaccess.org/internal/registration"
	"ccaccess.org/internal/token"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var sub registration.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		obs.CountRegistration("invalid")
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := a.svc.Submit(r.Context(), sub, a.resolveBaseURL(r))
	switch {
	case err == nil:
	case registration.IsValidation(err):
		obs.CountRegistration("invalid")
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, registration.ErrNotify):
		obs.CountRegistration("error")
		writeError(w, r, http.StatusInternalServerError, "could not deliver the approval request")
		return
	default:
		obs.CountRegistration("error")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	obs.CountRegistration("accepted")
	a.audit(r.Context(), "registration.submit", map[string]any{
		"email": strings.TrimSpace(sub.Email),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Registration received. You will get an email once your request is reviewed.",
		"status":  "pending_approval",
	})
}

func (a *API) handleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	q := r.URL.Query()
	res, err := a.svc.Approve(r.Context(), q.Get("token"), q.Get("secret"))
	if err != nil {
		a.resolutionError(w, r, "approve", err)
		return
	}

	obs.CountResolution("approve", string(res.Outcome))
	a.audit(r.Context(), "registration.approve", map[string]any{
		"email":   res.Registration.Email,
		"outcome": string(res.Outcome),
	})
	renderOutcome(w, res)
}

func (a *API) handleDeny(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	res, err := a.svc.Deny(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		a.resolutionError(w, r, "deny", err)
		return
	}

	obs.CountResolution("deny", string(res.Outcome))
	a.audit(r.Context(), "registration.deny", map[string]any{
		"email":   res.Registration.Email,
		"outcome": string(res.Outcome),
	})
	renderOutcome(w, res)
}

// resolutionError maps workflow failures onto status codes and pages.
// Signature and secret failures are recorded as security events since
// a well-formed client never produces them.
func (a *API) resolutionError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, token.ErrExpired):
		obs.CountResolution(action, "expired")
		renderFailure(w, http.StatusBadRequest, "Link expired",
			"This decision link has expired. Ask the requester to register again.")

	case errors.Is(err, token.ErrInvalidSignature):
		obs.CountResolution(action, "bad_token")
		_ = audit.LogSecurityEvent(r.Context(), "invalid_signature", map[string]any{
			"action": action,
		})
		renderFailure(w, http.StatusBadRequest, "Invalid link",
			"This decision link failed verification.")

	case errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongAction):
		obs.CountResolution(action, "bad_token")
		renderFailure(w, http.StatusBadRequest, "Invalid link",
			"This decision link is not valid.")

	case errors.Is(err, registration.ErrMissingSecret):
		obs.CountResolution(action, "forbidden")
		_ = audit.LogSecurityEvent(r.Context(), "missing_secret", map[string]any{
			"action": action,
		})
		renderFailure(w, http.StatusForbidden, "Not authorized",
			"This approval link is missing its verification secret.")

	case errors.Is(err, registration.ErrSecretMismatch):
		obs.CountResolution(action, "forbidden")
		_ = audit.LogSecurityEvent(r.Context(), "secret_mismatch", map[string]any{
			"action": action,
		})
		renderFailure(w, http.StatusForbidden, "Not authorized",
			"The verification secret on this link is not valid.")

	case errors.Is(err, crypt.ErrDecrypt), errors.Is(err, crypt.ErrEncrypt),
		errors.Is(err, identity.ErrProvider):
		obs.CountResolution(action, "error")
		renderFailure(w, http.StatusInternalServerError, "Something went wrong",
			"The decision could not be completed. Try the link again later.")

	default:
		obs.CountResolution(action, "error")
		renderFailure(w, http.StatusInternalServerError, "Something went wrong",
			"The decision could not be completed. Try the link again later.")
	}
}

// resolveBaseURL prefers the configured external address and falls back
// to the incoming request, so links survive proxies and local runs.
func (a *API) resolveBaseURL(r *http.Request) string {
	if a.baseURL != "" {
		return a.baseURL
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
