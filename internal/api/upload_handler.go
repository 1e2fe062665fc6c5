package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JinhuaXu/flowhub/internal/middleware"
	"github.com/JinhuaXu/flowhub/internal/resp"
	"github.com/JinhuaXu/flowhub/internal/storage"
)

// UploadHandler 文件上传HTTP处理器
type UploadHandler struct {
	storage storage.Storage
	maxSize int64
	logger  *zap.Logger
}

// NewUploadHandler 创建上传处理器实例
func NewUploadHandler(st storage.Storage, maxSize int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		storage: st,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Upload 上传文件，返回可填入工作流 file_url/cover_url 的引用
// POST /api/v1/admin/upload (multipart/form-data, field "file")
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)
	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid multipart form or file too large", reqID, "")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "file field is required", reqID, "")
		return
	}
	defer file.Close()

	fileURL, err := h.storage.Save(file, header.Filename)
	if err != nil {
		h.logger.Error("save upload failed",
			zap.String("request_id", reqID),
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "save upload failed", reqID, "")
		return
	}

	h.logger.Info("file uploaded",
		zap.String("request_id", reqID),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size),
		zap.String("file_url", fileURL),
	)

	data := map[string]any{
		"file_url": fileURL,
		"filename": header.Filename,
		"size":     header.Size,
	}
	resp.OK(w, &data, reqID, "")
}
