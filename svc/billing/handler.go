package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/reviewfunnel/pkg/jwt"
	"github.com/dmitrymomot/reviewfunnel/pkg/logger"
	"github.com/dmitrymomot/reviewfunnel/pkg/qrcode"
	"github.com/dmitrymomot/reviewfunnel/pkg/subscription"
	"github.com/dmitrymomot/reviewfunnel/svc/identity"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// UserRegistrar mirrors authenticated users into the directory.
type UserRegistrar interface {
	Upsert(ctx context.Context, userID uuid.UUID, email string) error
}

// Handler serves the billing HTTP surface.
type Handler struct {
	provider   subscription.Provider
	reconciler *subscription.Reconciler
	store      subscription.Store
	directory  subscription.Directory
	users      UserRegistrar
	catalog    *subscription.Catalog
	checker    *subscription.Checker
	tokens     *jwt.Service
	funnelBase string
	log        *slog.Logger
	now        func() time.Time
}

// Deps are the Handler collaborators. Users is optional.
type Deps struct {
	Provider   subscription.Provider
	Reconciler *subscription.Reconciler
	Store      subscription.Store
	Directory  subscription.Directory
	Users      UserRegistrar
	Catalog    *subscription.Catalog
	Tokens     *jwt.Service
	FunnelBase string
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Provider == nil || d.Reconciler == nil || d.Store == nil || d.Directory == nil || d.Catalog == nil || d.Tokens == nil {
		panic("billing: missing handler dependency")
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		provider:   d.Provider,
		reconciler: d.Reconciler,
		store:      d.Store,
		directory:  d.Directory,
		users:      d.Users,
		catalog:    d.Catalog,
		checker:    subscription.NewChecker(d.Store, d.Catalog.AccessPolicy(), d.Logger).WithNow(d.Now),
		tokens:     d.Tokens,
		funnelBase: d.FunnelBase,
		log:        d.Logger.With(logger.Component("billing")),
		now:        d.Now,
	}
}

// Routes returns the billing router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhooks/stripe", h.webhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Authenticate(h.tokens))
		r.Get("/subscription", h.summary)
		r.Post("/subscription/trial", h.startTrial)
		r.Post("/billing/checkout", h.checkout)
		r.Post("/billing/portal", h.portal)
		r.With(subscription.RequireAccess(h.checker, identity.UserID)).Get("/qrcode", h.qrcode)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// Summary is the read API payload.
type Summary struct {
	subscription.Access
	Record *subscription.Record `json:"record"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		subscription.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		subscription.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, status, errorResponse{Error: "failed to read request body"})
		return
	}

	ev, err := h.provider.ParseWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
	if errors.Is(err, subscription.ErrWebhookVerificationFailed) {
		h.log.WarnContext(ctx, "webhook signature rejected", logger.Error(err))
		status = http.StatusBadRequest
		writeJSON(w, status, errorResponse{Error: "invalid signature"})
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "webhook decode failed", logger.Error(err))
		status = http.StatusInternalServerError
		writeJSON(w, status, errorResponse{Error: "processing failed"})
		return
	}
	eventType = ev.ProviderType

	if _, err := h.reconciler.Apply(ctx, ev); err != nil {
		h.log.ErrorContext(ctx, "webhook processing failed",
			logger.EventID(ev.ID), logger.EventType(ev.ProviderType), logger.Error(err))
		status = http.StatusInternalServerError
		writeJSON(w, status, errorResponse{Error: "processing failed"})
		return
	}
	writeJSON(w, status, receivedResponse{Received: true})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.UserFromContext(r.Context())
	access, rec := h.checker.Check(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, Summary{Access: access, Record: rec})
}

func (h *Handler) startTrial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := identity.UserFromContext(ctx)

	if h.users != nil && user.Email != "" {
		if err := h.users.Upsert(ctx, user.ID, user.Email); err != nil {
			if errors.Is(err, identity.ErrInvalidEmail) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			h.log.ErrorContext(ctx, "user registration failed", logger.UserID(user.ID), logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "registration failed"})
			return
		}
	}

	now := h.now()
	trialEnds := now.Add(time.Duration(h.catalog.TrialDays()) * 24 * time.Hour)
	rec, created, err := h.store.EnsureTrial(ctx, user.ID, trialEnds)
	if err != nil {
		h.log.ErrorContext(ctx, "trial creation failed", logger.UserID(user.ID), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "trial creation failed"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.InfoContext(ctx, "trial started", logger.UserID(user.ID))
	}
	writeJSON(w, status, Summary{Access: h.catalog.AccessPolicy().Evaluate(rec, now), Record: rec})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := identity.UserFromContext(ctx)

	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Plan == "" {
		req.Plan = h.catalog.DefaultPlan()
	}
	priceID, err := h.catalog.PriceFor(req.Plan)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	addr := user.Email
	if addr == "" {
		if addr, err = h.directory.EmailFor(ctx, user.ID); err != nil {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "no email on file"})
			return
		}
	}

	url, err := h.provider.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
		PriceID: priceID,
		UserID:  user.ID.String(),
		Email:   addr,
	})
	if err != nil {
		h.log.ErrorContext(ctx, "checkout link failed", logger.UserID(user.ID), logger.Plan(req.Plan), logger.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "checkout unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

func (h *Handler) portal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := identity.UserFromContext(ctx)

	rec, err := h.store.Get(ctx, user.ID)
	if errors.Is(err, subscription.ErrRecordNotFound) || (err == nil && rec.StripeCustomerID == "") {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no billing account"})
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "subscription lookup failed", logger.UserID(user.ID), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup failed"})
		return
	}

	url, err := h.provider.CreatePortalLink(ctx, rec.StripeCustomerID)
	if err != nil {
		h.log.ErrorContext(ctx, "portal link failed", logger.UserID(user.ID), logger.CustomerID(rec.StripeCustomerID), logger.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "portal unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

func (h *Handler) qrcode(w http.ResponseWriter, r *http.Request) {
	user, _ := identity.UserFromContext(r.Context())

	link, err := qrcode.FunnelURL(h.funnelBase, user.ID.String())
	if err != nil {
		h.log.ErrorContext(r.Context(), "funnel url invalid", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "qr code unavailable"})
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := qrcode.PNG(link, size)
	if err != nil {
		h.log.ErrorContext(r.Context(), "qr code render failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "qr code unavailable"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
