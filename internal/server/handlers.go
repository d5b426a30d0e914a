package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priyakat/marketlink/backend/internal/domain"
	"github.com/priyakat/marketlink/backend/internal/enrich"
	"github.com/priyakat/marketlink/backend/internal/service"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger    *slog.Logger
	lifecycle *service.LifecycleService
	directory *service.DirectoryService
	companies *enrich.Service
}

// NewAPIHandlers constructs an APIHandlers instance. The companies service is
// optional; without it the suggest endpoint reports unavailable.
func NewAPIHandlers(logger *slog.Logger, lifecycle *service.LifecycleService, directory *service.DirectoryService, companies *enrich.Service) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		lifecycle: lifecycle,
		directory: directory,
		companies: companies,
	}
}

func (h *APIHandlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload registerRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	roles := make([]domain.Role, 0, len(payload.Roles))
	for _, role := range payload.Roles {
		roles = append(roles, domain.Role(role))
	}

	session, err := h.directory.Register(r.Context(), service.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Roles:    roles,
		Company: domain.Company{
			Name:        payload.Company.Name,
			Description: payload.Company.Description,
			Industry:    payload.Company.Industry,
			LogoURL:     payload.Company.LogoURL,
		},
	})
	if err != nil {
		h.writeServiceError(w, err, "registration failed")
		return
	}

	respondJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *APIHandlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload loginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := h.directory.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		h.writeServiceError(w, err, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *APIHandlers) handleParties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	summaries, err := h.directory.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, err, "party search failed")
		return
	}

	items := make([]partySummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, toPartySummaryResponse(summary))
	}
	respondJSON(w, http.StatusOK, partyListResponse{Items: items})
}

func (h *APIHandlers) handlePartyProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	partyID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/parties/"), "/")
	if partyID == "" {
		writeError(w, http.StatusBadRequest, "party ID is required")
		return
	}

	profile, err := h.directory.Profile(r.Context(), partyID)
	if err != nil {
		h.writeServiceError(w, err, "failed to fetch party profile", "partyId", partyID)
		return
	}

	resp := partyProfileResponse{
		partySummaryResponse: toPartySummaryResponse(profile.PartySummary),
		Reviews:              make([]reviewDetailResponse, 0, len(profile.Reviews)),
	}
	for _, review := range profile.Reviews {
		resp.Reviews = append(resp.Reviews, toReviewDetailResponse(review))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandlers) handlePartyReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	partyID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/reviews/party/"), "/")
	if partyID == "" {
		writeError(w, http.StatusBadRequest, "party ID is required")
		return
	}

	reviews, err := h.lifecycle.ReviewsAboutParty(r.Context(), partyID)
	if err != nil {
		h.writeServiceError(w, err, "failed to list reviews", "partyId", partyID)
		return
	}

	items := make([]reviewDetailResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, toReviewDetailResponse(review))
	}
	respondJSON(w, http.StatusOK, reviewListResponse{Items: items})
}

func (h *APIHandlers) handleCompanySuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if h.companies == nil {
		writeError(w, http.StatusServiceUnavailable, "company suggestions are not configured")
		return
	}

	suggestions, err := h.companies.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("company suggestion lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, "company suggestion lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, suggestionListResponse{Items: suggestions})
}

func (h *APIHandlers) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTransaction(w, r)
	case http.MethodGet:
		h.listTransactions(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	var payload createTransactionRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.lifecycle.CreateTransaction(r.Context(), service.CreateTransactionInput{
		InitiatorID: partyIDFromContext(r.Context()),
		RecipientID: payload.RecipientID,
		Amount:      payload.Amount,
		Description: payload.Description,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create transaction")
		return
	}

	respondJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (h *APIHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))

	summaries, err := h.lifecycle.ListTransactions(r.Context(), partyIDFromContext(r.Context()), status)
	if err != nil {
		h.writeServiceError(w, err, "failed to list transactions")
		return
	}

	items := make([]transactionSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, transactionSummaryResponse{
			TransactionID:     summary.ID,
			InitiatorID:       summary.InitiatorID,
			InitiatorName:     summary.InitiatorName,
			RecipientID:       summary.RecipientID,
			RecipientName:     summary.RecipientName,
			Amount:            summary.Amount.String(),
			Description:       summary.Description,
			Status:            string(summary.Status),
			InitiatorReviewed: summary.InitiatorReviewed,
			RecipientReviewed: summary.RecipientReviewed,
			CreatedAt:         formatTime(summary.CreatedAt),
		})
	}
	respondJSON(w, http.StatusOK, transactionListResponse{Items: items})
}

func (h *APIHandlers) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/transactions/"), "/")
	transactionID, action, _ := strings.Cut(rest, "/")
	if transactionID == "" {
		writeError(w, http.StatusBadRequest, "transaction ID is required")
		return
	}

	if action == "resync-reviews" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.resyncReviews(w, r, transactionID)
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		tx, err := h.lifecycle.GetTransaction(r.Context(), transactionID, partyIDFromContext(r.Context()))
		if err != nil {
			h.writeServiceError(w, err, "failed to fetch transaction", "transactionId", transactionID)
			return
		}
		respondJSON(w, http.StatusOK, toTransactionResponse(tx))
	case http.MethodPatch:
		h.updateTransactionStatus(w, r, transactionID)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch)
	}
}

func (h *APIHandlers) updateTransactionStatus(w http.ResponseWriter, r *http.Request, transactionID string) {
	var payload updateTransactionRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	tx, err := h.lifecycle.Transition(r.Context(), transactionID, domain.Status(payload.Status), partyIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "failed to update transaction status", "transactionId", transactionID)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *APIHandlers) resyncReviews(w http.ResponseWriter, r *http.Request, transactionID string) {
	tx, err := h.lifecycle.ResyncReviewFlags(r.Context(), transactionID)
	if err != nil {
		h.writeServiceError(w, err, "failed to resync review flags", "transactionId", transactionID)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// handleResyncAllReviews sweeps every transaction and repairs review flags
// that drifted from the ledger.
func (h *APIHandlers) handleResyncAllReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	summary, err := h.lifecycle.ResyncAllReviewFlags(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "review flag sweep failed")
		return
	}

	h.logger.Info("review flag sweep completed", "scanned", summary.Scanned, "repaired", summary.Repaired)
	respondJSON(w, http.StatusOK, resyncSummaryResponse{
		Scanned:  summary.Scanned,
		Repaired: summary.Repaired,
	})
}

func (h *APIHandlers) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload submitReviewRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.TransactionID == "" {
		writeError(w, http.StatusBadRequest, "transactionId is required")
		return
	}

	review, err := h.lifecycle.SubmitReview(r.Context(), service.SubmitReviewInput{
		TransactionID: payload.TransactionID,
		ReviewerID:    partyIDFromContext(r.Context()),
		Rating:        payload.Rating,
		Comment:       payload.Comment,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to submit review", "transactionId", payload.TransactionID)
		return
	}

	respondJSON(w, http.StatusCreated, reviewResponse{
		ReviewID:        review.ID,
		ReviewerID:      review.ReviewerID,
		ReviewedPartyID: review.ReviewedPartyID,
		TransactionID:   review.TransactionID,
		Rating:          review.Rating,
		Comment:         review.Comment,
		CreatedAt:       formatTime(review.CreatedAt),
	})
}

// writeServiceError maps service errors onto HTTP statuses. Client-caused
// failures surface the wrapped message; everything else is logged and hidden
// behind a generic response.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// --- Request & Response DTOs ---

type registerRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Roles    []string       `json:"roles"`
	Company  companyRequest `json:"company"`
}

type companyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	LogoURL     string `json:"logoUrl"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string        `json:"token"`
	Party partyResponse `json:"party"`
}

type partyResponse struct {
	PartyID   string          `json:"partyId"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Roles     []string        `json:"roles"`
	Company   companyResponse `json:"company"`
	CreatedAt string          `json:"createdAt"`
}

type companyResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	LogoURL     string `json:"logoUrl"`
}

type partyListResponse struct {
	Items []partySummaryResponse `json:"items"`
}

type partySummaryResponse struct {
	PartyID       string   `json:"partyId"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Roles         []string `json:"roles"`
	AverageRating float64  `json:"averageRating"`
	ReviewCount   int      `json:"reviewCount"`
}

type partyProfileResponse struct {
	partySummaryResponse
	Reviews []reviewDetailResponse `json:"reviews"`
}

type createTransactionRequest struct {
	RecipientID string          `json:"recipientId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type updateTransactionRequest struct {
	Status string `json:"status"`
}

type transactionResponse struct {
	TransactionID     string `json:"transactionId"`
	InitiatorID       string `json:"initiatorId"`
	RecipientID       string `json:"recipientId"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
	Status            string `json:"status"`
	InitiatorReviewed bool   `json:"initiatorReviewed"`
	RecipientReviewed bool   `json:"recipientReviewed"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

type transactionListResponse struct {
	Items []transactionSummaryResponse `json:"items"`
}

type transactionSummaryResponse struct {
	TransactionID     string `json:"transactionId"`
	InitiatorID       string `json:"initiatorId"`
	InitiatorName     string `json:"initiatorName"`
	RecipientID       string `json:"recipientId"`
	RecipientName     string `json:"recipientName"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
	Status            string `json:"status"`
	InitiatorReviewed bool   `json:"initiatorReviewed"`
	RecipientReviewed bool   `json:"recipientReviewed"`
	CreatedAt         string `json:"createdAt"`
}

type submitReviewRequest struct {
	TransactionID string `json:"transactionId"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

type reviewResponse struct {
	ReviewID        string `json:"reviewId"`
	ReviewerID      string `json:"reviewerId"`
	ReviewedPartyID string `json:"reviewedPartyId"`
	TransactionID   string `json:"transactionId"`
	Rating          int    `json:"rating"`
	Comment         string `json:"comment"`
	CreatedAt       string `json:"createdAt"`
}

type reviewListResponse struct {
	Items []reviewDetailResponse `json:"items"`
}

type reviewDetailResponse struct {
	ReviewID      string `json:"reviewId"`
	ReviewerID    string `json:"reviewerId"`
	ReviewerName  string `json:"reviewerName"`
	TransactionID string `json:"transactionId"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
	AmountBracket string `json:"amountBracket"`
	CreatedAt     string `json:"createdAt"`
}

type suggestionListResponse struct {
	Items []enrich.Suggestion `json:"items"`
}

type resyncSummaryResponse struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
}

// --- Helpers ---

func toSessionResponse(session service.Session) sessionResponse {
	return sessionResponse{
		Token: session.Token,
		Party: partyResponse{
			PartyID: session.Party.ID,
			Name:    session.Party.Name,
			Email:   session.Party.Email,
			Roles:   rolesToStrings(session.Party.Roles),
			Company: companyResponse{
				Name:        session.Party.Company.Name,
				Description: session.Party.Company.Description,
				Industry:    session.Party.Company.Industry,
				LogoURL:     session.Party.Company.LogoURL,
			},
			CreatedAt: formatTime(session.Party.CreatedAt),
		},
	}
}

func toPartySummaryResponse(summary domain.PartySummary) partySummaryResponse {
	return partySummaryResponse{
		PartyID:       summary.ID,
		Name:          summary.Name,
		Email:         summary.Email,
		Roles:         rolesToStrings(summary.Roles),
		AverageRating: summary.AverageRating,
		ReviewCount:   summary.ReviewCount,
	}
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID:     tx.ID,
		InitiatorID:       tx.InitiatorID,
		RecipientID:       tx.RecipientID,
		Amount:            tx.Amount.String(),
		Description:       tx.Description,
		Status:            string(tx.Status),
		InitiatorReviewed: tx.InitiatorReviewed,
		RecipientReviewed: tx.RecipientReviewed,
		CreatedAt:         formatTime(tx.CreatedAt),
		UpdatedAt:         formatTime(tx.UpdatedAt),
	}
}

func toReviewDetailResponse(review domain.ReviewDetail) reviewDetailResponse {
	return reviewDetailResponse{
		ReviewID:      review.ID,
		ReviewerID:    review.ReviewerID,
		ReviewerName:  review.ReviewerName,
		TransactionID: review.TransactionID,
		Rating:        review.Rating,
		Comment:       review.Comment,
		AmountBracket: review.Bracket,
		CreatedAt:     formatTime(review.CreatedAt),
	}
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
