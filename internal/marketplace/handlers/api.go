package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/auth"
	"github.com/gartstein/harvest/internal/marketplace/controller"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// API serves the marketplace JSON endpoints.
type API struct {
	svc       Services
	jwtSecret string
	tokenTTL  time.Duration
	marshaler runtime.Marshaler
	logger    *zap.Logger
}

func NewAPI(svc Services, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *API {
	return &API{
		svc:       svc,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		marshaler: &runtime.JSONBuiltin{},
		logger:    logger.Named("http_handler"),
	}
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

func (a *API) routes() []route {
	return []route{
		{http.MethodPost, "/v1/auth/token", a.issueToken},
		{http.MethodPost, "/v1/accounts", a.createAccount},
		{http.MethodGet, "/v1/accounts/me", a.me},
		{http.MethodPut, "/v1/accounts/{id}/active", a.setAccountActive},
		{http.MethodPut, "/v1/profile", a.upsertProfile},
		{http.MethodGet, "/v1/profiles/{account_id}", a.getProfile},
		{http.MethodPost, "/v1/organizations", a.createOrganizationWithJob},
		{http.MethodPatch, "/v1/organizations/{id}", a.updateOrganization},
		{http.MethodPost, "/v1/organizations/{id}/jobs", a.createJob},
		{http.MethodGet, "/v1/jobs/{id}", a.getJob},
		{http.MethodPatch, "/v1/jobs/{id}", a.updateJob},
		{http.MethodPut, "/v1/jobs/{id}/active", a.setJobActive},
		{http.MethodPost, "/v1/jobs/{id}/submit", a.submitJob},
		{http.MethodPut, "/v1/jobs/{id}/status", a.transitionJob},
		{http.MethodPost, "/v1/jobs/{id}/applications", a.submitApplication},
		{http.MethodGet, "/v1/jobs/{id}/applications", a.listJobApplications},
		{http.MethodGet, "/v1/applications", a.listMyApplications},
		{http.MethodPut, "/v1/applications/{id}/status", a.transitionApplication},
		{http.MethodPost, "/v1/messages", a.sendMessage},
		{http.MethodGet, "/v1/messages", a.inbox},
		{http.MethodPost, "/v1/messages/{id}/read", a.markRead},
		{http.MethodPost, "/v1/search/jobs", a.searchJobs},
		{http.MethodPost, "/v1/search/candidates", a.searchCandidates},
		{http.MethodGet, "/v1/analytics", a.analytics},
		{http.MethodDelete, "/v1/admin/organizations/{id}", a.purgeOrganization},
		{http.MethodDelete, "/v1/admin/accounts/{id}", a.purgeAccount},
	}
}

// Mux returns a runtime mux with every endpoint registered.
func (a *API) Mux() (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()
	for _, r := range a.routes() {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return mux, nil
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req tokenRequest
	if !a.decode(w, r, &req) {
		return
	}
	account, err := a.svc.Accounts.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, err)
		return
	}
	ttl := a.tokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTTL
	}
	token, err := auth.GenerateToken(account.ID, account.Roles, a.jwtSecret, ttl)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC(), AccountID: account.ID})
}

// createAccount registers an account. Only administrators may grant the
// admin role; accounts without roles become candidates.
func (a *API) createAccount(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req createAccountRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.Roles) == 0 {
		req.Roles = []models.Role{models.RoleCandidate}
	}
	if slices.Contains(req.Roles, models.RoleAdmin) && !auth.ActorFromContext(r.Context()).IsAdmin() {
		a.fail(w, fmt.Errorf("%w: only administrators may create administrators", e.ErrForbidden))
		return
	}
	account, err := a.svc.Accounts.CreateAccount(r.Context(), req.Email, req.Password, req.Roles)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, account)
}

func (a *API) me(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	actor := auth.ActorFromContext(r.Context())
	if actor.Anonymous() {
		a.fail(w, e.ErrUnauthenticated)
		return
	}
	account, err := a.svc.Accounts.GetAccount(r.Context(), actor.AccountID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, account)
}

func (a *API) setAccountActive(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req activeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		a.fail(w, e.Invalid("active", "is required"))
		return
	}
	account, err := a.svc.Accounts.SetActive(r.Context(), auth.ActorFromContext(r.Context()), id, *req.Active)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, account)
}

func (a *API) upsertProfile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req profileRequest
	if !a.decode(w, r, &req) {
		return
	}
	profile, err := a.svc.Profiles.UpsertProfile(r.Context(), auth.ActorFromContext(r.Context()), req.fields())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, profile)
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if auth.ActorFromContext(r.Context()).Anonymous() {
		a.fail(w, e.ErrUnauthenticated)
		return
	}
	id, ok := a.pathID(w, params, "account_id")
	if !ok {
		return
	}
	profile, err := a.svc.Profiles.GetProfile(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, profile)
}

func (a *API) createOrganizationWithJob(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req organizationRequest
	if !a.decode(w, r, &req) {
		return
	}
	in := req.input()
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		in.IdempotencyKey = key
	}
	out, err := a.svc.Organizations.CreateOrganizationWithJob(r.Context(), auth.ActorFromContext(r.Context()), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, out)
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request, params map[string]string) {
	orgID, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req jobRequest
	if !a.decode(w, r, &req) {
		return
	}
	job, err := a.svc.Jobs.CreateJob(r.Context(), auth.ActorFromContext(r.Context()), orgID, req.fields())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, job)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	job, err := a.svc.Jobs.GetJob(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, job)
}

func (a *API) updateOrganization(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req organizationPatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	org, err := a.svc.Organizations.UpdateOrganization(r.Context(), auth.ActorFromContext(r.Context()), req.update(id))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, org)
}

func (a *API) updateJob(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req jobPatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	job, err := a.svc.Jobs.UpdateJob(r.Context(), auth.ActorFromContext(r.Context()), req.update(id))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, job)
}

func (a *API) setJobActive(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req activeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		a.fail(w, e.Invalid("active", "is required"))
		return
	}
	job, err := a.svc.Jobs.SetJobActive(r.Context(), auth.ActorFromContext(r.Context()), id, *req.Active)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, job)
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	job, err := a.svc.Jobs.SubmitJobForReview(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, job)
}

func (a *API) transitionJob(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !a.decode(w, r, &req) {
		return
	}
	job, err := a.svc.Jobs.TransitionJobStatus(r.Context(), id, models.JobStatus(req.Status), auth.ActorFromContext(r.Context()))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, job)
}

func (a *API) submitApplication(w http.ResponseWriter, r *http.Request, params map[string]string) {
	actor := auth.ActorFromContext(r.Context())
	if actor.Anonymous() {
		a.fail(w, e.ErrUnauthenticated)
		return
	}
	jobID, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req applicationRequest
	if !a.decode(w, r, &req) {
		return
	}
	app, err := a.svc.Applications.SubmitApplication(r.Context(), jobID, actor.AccountID, req.CoverLetter, req.ResumeRef)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, app)
}

func (a *API) listJobApplications(w http.ResponseWriter, r *http.Request, params map[string]string) {
	jobID, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	apps, err := a.svc.Applications.ListJobApplications(r.Context(), auth.ActorFromContext(r.Context()), jobID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, apps)
}

func (a *API) listMyApplications(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	apps, err := a.svc.Applications.ListMyApplications(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, apps)
}

func (a *API) transitionApplication(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !a.decode(w, r, &req) {
		return
	}
	app, err := a.svc.Applications.TransitionApplication(r.Context(), id, models.ApplicationStatus(req.Status), auth.ActorFromContext(r.Context()))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, app)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req messageRequest
	if !a.decode(w, r, &req) {
		return
	}
	msg, err := a.svc.Messages.SendMessage(r.Context(), auth.ActorFromContext(r.Context()), req.input())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, msg)
}

func (a *API) inbox(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	unread, err := queryBool(q.Get("unread"), "unread")
	if err != nil {
		a.fail(w, err)
		return
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		a.fail(w, err)
		return
	}
	msgs, err := a.svc.Messages.Inbox(r.Context(), auth.ActorFromContext(r.Context()), unread, limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, msgs)
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	msg, err := a.svc.Messages.MarkRead(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, msg)
}

func (a *API) searchJobs(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var f controller.JobFilter
	if !a.decodeOptional(w, r, &f) {
		return
	}
	page, err := a.svc.Search.SearchJobs(r.Context(), auth.ActorFromContext(r.Context()), f)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, page)
}

func (a *API) searchCandidates(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var f controller.CandidateFilter
	if !a.decodeOptional(w, r, &f) {
		return
	}
	page, err := a.svc.Search.SearchCandidates(r.Context(), auth.ActorFromContext(r.Context()), f)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, page)
}

func (a *API) analytics(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	window, err := queryInt(r.URL.Query().Get("window_months"), "window_months")
	if err != nil {
		a.fail(w, err)
		return
	}
	data, err := a.svc.Analytics.Snapshot(r.Context(), auth.ActorFromContext(r.Context()), window)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, data)
}

func (a *API) purgeOrganization(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	report, err := a.svc.Admin.PurgeOrganization(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, report)
}

func (a *API) purgeAccount(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, ok := a.pathID(w, params, "id")
	if !ok {
		return
	}
	report, err := a.svc.Admin.PurgeAccount(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, report)
}

// decode reads a required JSON body into v and reports failures to the client.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := a.marshaler.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		a.fail(w, e.Invalid("body", "is required"))
		return false
	}
	if err != nil {
		a.fail(w, e.Invalid("body", "must be valid JSON"))
		return false
	}
	return true
}

// decodeOptional is decode for endpoints where an empty body means defaults.
func (a *API) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := a.marshaler.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		a.fail(w, e.Invalid("body", "must be valid JSON"))
		return false
	}
	return true
}

func (a *API) pathID(w http.ResponseWriter, params map[string]string, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(params[name])
	if err != nil {
		a.fail(w, e.Invalid(name, "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (a *API) respond(w http.ResponseWriter, code int, v any) {
	buf, err := a.marshaler.Marshal(v)
	if err != nil {
		a.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", a.marshaler.ContentType(v))
	w.WriteHeader(code)
	if _, err := w.Write(buf); err != nil {
		a.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	st := mapServiceError(err, a.logger)
	a.respond(w, runtime.HTTPStatusFromCode(st.Code()), newErrorBody(st, err))
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, e.Invalid(name, "must be an integer")
	}
	return n, nil
}

func queryBool(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, e.Invalid(name, "must be a boolean")
	}
	return b, nil
}
