package title

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/wibowo/expense-report/internal/auth"
	"github.com/wibowo/expense-report/internal/transport"
	"github.com/wibowo/expense-report/pkg/logger"
)

const maxImportBytes = 16 << 20

type ServiceAPI interface {
	ListTitles(user *auth.User) ([]TitleResponse, error)
	CreateTitle(user *auth.User, dto CreateTitleDTO) (*TitleResponse, error)
	DeleteTitle(ctx context.Context, user *auth.User, titleID int64) error
	CopyTitle(ctx context.Context, user *auth.User, titleID int64) (*TitleResponse, error)
	Search(user *auth.User, query string) ([]TitleResponse, error)
	ExportFile(user *auth.User, titleID int64, format string) (fileName, contentType string, data []byte, err error)
	ImportFile(user *auth.User, name, format string, data []byte) (*TitleResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.L()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) ListTitles(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	titles, err := h.Service.ListTitles(user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, titles)
}

func (h *Handler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateTitleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title, err := h.Service.CreateTitle(user, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, title)
}

func (h *Handler) DeleteTitle(w http.ResponseWriter, r *http.Request) {
	user, titleID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteTitle(r.Context(), user, titleID); err != nil {
		h.Logger.Error("DeleteTitle: service error", "error", err, "title_id", titleID)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CopyTitle(w http.ResponseWriter, r *http.Request) {
	user, titleID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	title, err := h.Service.CopyTitle(r.Context(), user, titleID)
	if err != nil {
		h.Logger.Error("CopyTitle: service error", "error", err, "title_id", titleID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, title)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	titles, err := h.Service.Search(user, r.URL.Query().Get("q"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, titles)
}

// Export streams the report as a file download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	user, titleID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	fileName, contentType, data, err := h.Service.ExportFile(user, titleID, r.URL.Query().Get("format"))
	if err != nil {
		h.Logger.Error("Export: service error", "error", err, "title_id", titleID)
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import accepts a multipart upload with a "file" part plus optional "name"
// and "format" fields. The format falls back to the file extension.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid multipart request body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	}
	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	title, err := h.Service.ImportFile(user, name, format, data)
	if err != nil {
		h.Logger.Error("Import: service error", "error", err, "file", header.Filename)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, title)
}

func (h *Handler) userAndID(w http.ResponseWriter, r *http.Request) (*auth.User, int64, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, 0, false
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense title ID")
		return nil, 0, false
	}
	return user, id, true
}
