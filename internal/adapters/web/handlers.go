package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/portfolio"
	"go.uber.org/zap"
)

const reasonInvalidInput = "invalid_input"

type handlers struct {
	service        *core.ContactService
	content        Content
	maxBodyBytes   int64
	trustForwarded bool
	logger         *zap.Logger
}

// contactRequest is the decoded contact form. Website and Honeypot are the
// same hidden field under its two accepted names.
type contactRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Email         string          `json:"email" validate:"required,email,max=254"`
	Message       string          `json:"message" validate:"required,max=5000"`
	Website       string          `json:"website"`
	Honeypot      string          `json:"honeypot"`
	ClientElapsed json.RawMessage `json:"client_elapsed"`
}

type contactResponse struct {
	OK               bool                `json:"ok"`
	ID               string              `json:"id,omitempty"`
	Reason           string              `json:"reason,omitempty"`
	Errors           map[string][]string `json:"errors,omitempty"`
	RemainingSeconds int                 `json:"remaining_seconds,omitempty"`
}

type statusResponse struct {
	CanSubmit        bool `json:"can_submit"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handlers) contact(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	req, status, err := h.decodeContact(r)
	if err != nil {
		h.logger.Debug("Rejected contact payload", zap.Error(err))
		writeJSON(w, status, contactResponse{
			Reason: reasonInvalidInput,
			Errors: map[string][]string{"form": {err.Error()}},
		})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)

	if fieldErrs := validateStruct(req); fieldErrs != nil {
		writeJSON(w, http.StatusBadRequest, contactResponse{
			Reason: reasonInvalidInput,
			Errors: fieldErrs,
		})
		return
	}

	honeypot := req.Website
	if honeypot == "" {
		honeypot = req.Honeypot
	}

	outcome, err := h.service.Submit(r.Context(), &core.ContactSubmission{
		Candidate: core.CandidateSubmission{
			Name:                 req.Name,
			Email:                req.Email,
			Message:              req.Message,
			HoneypotValue:        honeypot,
			ClientElapsedSeconds: core.ParseElapsed(strings.Trim(string(req.ClientElapsed), `"`)),
			SourceIP:             ClientIP(r, h.trustForwarded),
		},
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	if !outcome.Result.Accepted {
		h.writeRejection(w, outcome.Result)
		return
	}

	writeJSON(w, http.StatusCreated, contactResponse{OK: true, ID: outcome.Record.ID})
}

// decodeContact reads a JSON or form body. The returned status is only
// meaningful with a non-nil error.
func (h *handlers) decodeContact(r *http.Request) (*contactRequest, int, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content type")
	}

	req := &contactRequest{}
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			return nil, bodyErrorStatus(err), fmt.Errorf("malformed JSON body")
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(h.maxBodyBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, bodyErrorStatus(err), fmt.Errorf("malformed form body")
		}
		req.Name = r.PostFormValue("name")
		req.Email = r.PostFormValue("email")
		req.Message = r.PostFormValue("message")
		req.Website = r.PostFormValue("website")
		req.Honeypot = r.PostFormValue("honeypot")
		if v := r.PostFormValue("client_elapsed"); v != "" {
			req.ClientElapsed = json.RawMessage(strconv.Quote(v))
		}
	default:
		return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content type")
	}

	return req, 0, nil
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *handlers) writeRejection(w http.ResponseWriter, res *core.GuardResult) {
	policy := h.service.Guard().Policy()
	resp := contactResponse{
		Reason:           string(res.Reason),
		RemainingSeconds: res.RemainingSeconds(),
	}

	status := http.StatusBadRequest
	switch res.Reason {
	case core.ReasonAutomatedSubmission:
		resp.Errors = map[string][]string{"form": {"This form submission appears to be automated."}}
	case core.ReasonSubmittedTooQuickly:
		resp.Errors = map[string][]string{"form": {"Form submitted too quickly. Please try again."}}
	case core.ReasonEmailCooldownActive:
		status = http.StatusTooManyRequests
		resp.Errors = map[string][]string{"email": {waitMessage(policy.EmailCooldown)}}
	case core.ReasonIPCooldownActive:
		status = http.StatusTooManyRequests
		resp.Errors = map[string][]string{"form": {waitMessage(policy.IPCooldown)}}
	}

	if resp.RemainingSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RemainingSeconds))
	}
	writeJSON(w, status, resp)
}

func waitMessage(window time.Duration) string {
	minutes := int(math.Ceil(window.Minutes()))
	if minutes <= 1 {
		return "Please wait at least 1 minute before sending another message."
	}
	return fmt.Sprintf("Please wait at least %d minutes before sending another message.", minutes)
}

func (h *handlers) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Something went wrong. Please try again later."
	if errors.Is(err, core.ErrPersistence) {
		status = http.StatusServiceUnavailable
		msg = "The contact form is temporarily unavailable. Please try again later."
	}
	h.logger.Error("Contact request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, contactResponse{Errors: map[string][]string{"form": {msg}}})
}

func (h *handlers) cooldownStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context(), r.URL.Query().Get("email"), ClientIP(r, h.trustForwarded))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		CanSubmit:        st.CanSubmit,
		RemainingSeconds: st.RemainingSeconds,
	})
}

func (h *handlers) projects(w http.ResponseWriter, r *http.Request) {
	out := []portfolio.Project{}
	if h.content.Catalog != nil && h.content.Catalog.Projects != nil {
		out = h.content.Catalog.Projects
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) skills(w http.ResponseWriter, r *http.Request) {
	out := []portfolio.Skill{}
	if h.content.Catalog != nil && h.content.Catalog.Skills != nil {
		out = h.content.Catalog.Skills
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) viewCV(w http.ResponseWriter, r *http.Request) {
	h.serveCV(w, r, "inline")
}

func (h *handlers) downloadCV(w http.ResponseWriter, r *http.Request) {
	h.serveCV(w, r, "attachment")
}

func (h *handlers) serveCV(w http.ResponseWriter, r *http.Request, disposition string) {
	if h.content.CVPath == "" {
		http.Error(w, "CV not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(h.content.CVPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.logger.Error("Failed to open CV", zap.String("path", h.content.CVPath), zap.Error(err))
		}
		http.Error(w, "CV not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "CV not found", http.StatusNotFound)
		return
	}

	name := filepath.Base(h.content.CVPath)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
