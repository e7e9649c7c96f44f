package expense

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/wibowo/expense-report/internal/auth"
	"github.com/wibowo/expense-report/internal/transport"
	"github.com/wibowo/expense-report/pkg/logger"
)

// maxUploadBytes bounds one multipart submission, fields plus files.
const maxUploadBytes = 32 << 20

type ServiceAPI interface {
	CreateForm(ctx context.Context, user *auth.User, dto CreateFormDTO) (*ExpenseForm, error)
	ListForms(user *auth.User, titleID int64) ([]*ExpenseForm, error)
	GetForm(user *auth.User, formID int64) (*ExpenseForm, error)
	UpdateForm(user *auth.User, formID int64, dto UpdateFormDTO) (*ExpenseForm, error)
	UpdateStatus(user *auth.User, formID int64, dto UpdateStatusDTO) (*ExpenseForm, error)
	SendForApproval(user *auth.User, formID int64) (*ExpenseForm, error)
	RevokeApproval(user *auth.User, formID int64) (*ExpenseForm, error)
	BulkUpdateStatus(user *auth.User, dto BulkUpdateDTO) (*BulkResult, error)
	DeleteForm(ctx context.Context, user *auth.User, formID int64) error
	AddAttachments(ctx context.Context, user *auth.User, formID int64, files []StagedFile) (*ExpenseForm, error)
	DeleteAttachment(ctx context.Context, user *auth.User, formID, attachmentID int64) error
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

func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.Logger.Error("CreateForm: invalid multipart body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid multipart request body")
		return
	}

	titleID, _ := strconv.ParseInt(firstFormValue(r, "expense_title_id", "title_id"), 10, 64)
	dto := CreateFormDTO{
		ExpenseTitleID: titleID,
		MasterGroup:    r.FormValue("master_group"),
		Subgroup:       r.FormValue("subgroup"),
		Currency:       r.FormValue("currency"),
		Amount:         r.FormValue("amount"),
		Date:           r.FormValue("date"),
		Comments:       r.FormValue("comments"),
	}

	files, err := readStagedFiles(r)
	if err != nil {
		h.Logger.Error("CreateForm: failed to read attachments", "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read attachment files")
		return
	}
	dto.Files = files

	form, err := h.Service.CreateForm(r.Context(), user, dto)
	if err != nil {
		h.Logger.Error("CreateForm: service error", "error", err, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, form.ToResponse())
}

func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// both names survive as an external-contract quirk of the old clients
	titleParam := r.URL.Query().Get("title_id")
	if titleParam == "" {
		titleParam = r.URL.Query().Get("expense_title_id")
	}
	var titleID int64
	if titleParam != "" {
		parsed, err := strconv.ParseInt(titleParam, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid title_id")
			return
		}
		titleID = parsed
	}

	forms, err := h.Service.ListForms(user, titleID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToResponseSlice(forms))
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	form, err := h.Service.GetForm(user, formID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, form.ToResponse())
}

func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var dto UpdateFormDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	form, err := h.Service.UpdateForm(user, formID, dto)
	if err != nil {
		h.Logger.Error("UpdateForm: service error", "error", err, "form_id", formID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, form.ToResponse())
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	form, err := h.Service.UpdateStatus(user, formID, dto)
	if err != nil {
		h.Logger.Error("UpdateStatus: service error", "error", err, "form_id", formID, "status", dto.Status)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, form.ToResponse())
}

func (h *Handler) SendForApproval(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	form, err := h.Service.SendForApproval(user, formID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, form.ToResponse())
}

func (h *Handler) RevokeApproval(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	form, err := h.Service.RevokeApproval(user, formID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, form.ToResponse())
}

func (h *Handler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto BulkUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.BulkUpdateStatus(user, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteForm(r.Context(), user, formID); err != nil {
		h.Logger.Error("DeleteForm: service error", "error", err, "form_id", formID)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddAttachments(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid multipart request body")
		return
	}

	files, err := readStagedFiles(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "failed to read attachment files")
		return
	}

	form, err := h.Service.AddAttachments(r.Context(), user, formID, files)
	if err != nil {
		h.Logger.Error("AddAttachments: service error", "error", err, "form_id", formID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, form.ToResponse())
}

func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	user, formID, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var dto DeleteAttachmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.AttachmentID <= 0 {
		h.WriteError(w, http.StatusBadRequest, "attachment_id is required")
		return
	}

	if err := h.Service.DeleteAttachment(r.Context(), user, formID, dto.AttachmentID); err != nil {
		h.Logger.Error("DeleteAttachment: service error", "error", err, "form_id", formID, "attachment_id", dto.AttachmentID)
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userAndID(w http.ResponseWriter, r *http.Request) (*auth.User, int64, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, 0, false
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense form ID")
		return nil, 0, false
	}
	return user, id, true
}

func firstFormValue(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.FormValue(name); v != "" {
			return v
		}
	}
	return ""
}

// readStagedFiles drains the uploaded files into memory. Both the plural
// field name and the old singular one are accepted.
func readStagedFiles(r *http.Request) ([]StagedFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["attachments"]...)
	headers = append(headers, r.MultipartForm.File["attachment"]...)

	files := make([]StagedFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, StagedFile{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}
