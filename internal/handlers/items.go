package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lostfound-board/apiserver/internal/imaging"
	"github.com/lostfound-board/apiserver/internal/services"
	"github.com/lostfound-board/apiserver/types"
)

const (
	defaultPage     = 1
	maxLimit        = services.MaxListLimit
	formFieldImage  = "image"
	multipartMemory = 1 << 20
	maxUploadBytes  = imaging.MaxUploadBytes + multipartMemory
)

// ItemHandler provides HTTP handlers for items.
type ItemHandler struct {
	items  *services.ItemService
	claims *services.ClaimService
}

func NewItemHandler(items *services.ItemService, claims *services.ClaimService) *ItemHandler {
	return &ItemHandler{items: items, claims: claims}
}

// ItemRouter registers item routes on the given router. Listing accepts an
// optional token; posting, claiming and uploading photos require one.
func ItemRouter(r chi.Router, items *services.ItemService, claims *services.ClaimService, resolver TokenResolver) {
	handler := NewItemHandler(items, claims)
	requireAuth := RequireAuth(resolver)

	r.With(OptionalAuth(resolver)).Get("/", handler.ListItems)
	r.With(requireAuth).Post("/", handler.CreateItem)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetItem)
		r.With(requireAuth).Post("/claim", handler.ClaimItem)
		r.With(requireAuth).Post("/images", handler.UploadImage)
		r.Get("/images/{index}", handler.GetImage)
	})
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseItemFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	if isTrue(r.URL.Query().Get("mine")) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
			return
		}
		filter.PostedBy = userID
	}

	items, total, err := h.items.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if items == nil {
		items = []types.Item{}
	}
	header := w.Header()
	header.Set(HeaderTotalCount, strconv.Itoa(total))
	header.Set(HeaderPage, strconv.Itoa(page))
	header.Set(HeaderPageLimit, strconv.Itoa(filter.Limit))
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Get(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req CreateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid request")
		return
	}

	item, err := h.items.Create(r.Context(), userID, services.NewItem{
		Kind:        req.Kind,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// ClaimItem claims the item for the authenticated user.
func (h *ItemHandler) ClaimItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	item, err := h.claims.Claim(r.Context(), chi.URLParam(r, "itemID"), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "image file is required")
		return
	}
	defer file.Close()

	item, err := h.items.AddImage(r.Context(), chi.URLParam(r, "itemID"), userID, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "invalid image index")
		return
	}

	reader, info, err := h.items.OpenImage(r.Context(), chi.URLParam(r, "itemID"), index)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// CreateItemRequest is the body of POST /items.
type CreateItemRequest struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Pagination metadata for GET /items. The body is the bare item array.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderPage       = "X-Page"
	HeaderPageLimit  = "X-Page-Limit"
)

func parseItemFilter(r *http.Request) (types.ItemFilter, int, error) {
	query := r.URL.Query()
	var filter types.ItemFilter

	if raw := strings.TrimSpace(query.Get("kind")); raw != "" {
		kind, ok := types.ParseItemKind(raw)
		if !ok {
			return types.ItemFilter{}, 0, errors.New("invalid kind")
		}
		filter.Kind = kind
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := types.ParseItemStatus(raw)
		if !ok {
			return types.ItemFilter{}, 0, errors.New("invalid status")
		}
		filter.Status = status
	}
	switch order := strings.ToLower(strings.TrimSpace(query.Get("order"))); order {
	case "", string(types.ItemOrderNewest):
		filter.Order = types.ItemOrderNewest
	case string(types.ItemOrderOldest):
		filter.Order = types.ItemOrderOldest
	default:
		return types.ItemFilter{}, 0, errors.New("invalid order")
	}
	filter.Query = strings.TrimSpace(query.Get("q"))

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		return types.ItemFilter{}, 0, err
	}
	filter.Limit = limit
	filter.Offset = offset
	return filter, page, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = services.DefaultListLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func isTrue(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}
