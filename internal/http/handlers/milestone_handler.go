package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/contracthub/backend/internal/http/handlers/common"
	"github.com/contracthub/backend/internal/service"
	"github.com/contracthub/backend/internal/storage"
	"github.com/h2non/filetype"
)

// Разрешённые типы вложений к сдаче работы
var allowedAttachmentMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
}

// Разрешённые расширения вложений
var allowedAttachmentExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
	".zip":  true,
}

// MilestoneHandler управляет работой по этапам: старт, сдача результата
// с вложением, приёмка и запрос доработки.
type MilestoneHandler struct {
	contracts   *service.ContractService
	attachments *storage.AttachmentStorage
}

// NewMilestoneHandler создаёт хэндлер.
func NewMilestoneHandler(contracts *service.ContractService, attachments *storage.AttachmentStorage) *MilestoneHandler {
	return &MilestoneHandler{contracts: contracts, attachments: attachments}
}

// StartMilestone обрабатывает POST /contracts/:id/milestones/:milestoneID/start.
func (h *MilestoneHandler) StartMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := h.contracts.StartMilestone(c.Request.Context(), contractID, milestoneID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// SubmitDeliverable обрабатывает POST /contracts/:id/milestones/:milestoneID/submit.
// Принимает multipart/form-data: текстовое поле message и необязательный
// файл file (изображение, PDF или ZIP-архив).
func (h *MilestoneHandler) SubmitDeliverable(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := service.SubmitDeliverableInput{
		ContractID:  contractID,
		MilestoneID: milestoneID,
		UserID:      userID,
	}

	if message := strings.TrimSpace(c.PostForm("message")); message != "" {
		in.Message = &message
	}

	file, err := c.FormFile("file")
	if err == nil && file != nil {
		if file.Size == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "файл не может быть пустым"})
			return
		}

		// Валидация расширения файла
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedAttachmentExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("неподдерживаемый формат файла. Разрешены: %s", strings.Join(attachmentExtensions(), ", ")),
			})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer src.Close()

		// Читаем первые 512 байт для проверки магических байтов
		buffer := make([]byte, 512)
		n, err := src.Read(buffer)
		if err != nil && err != io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось прочитать файл"})
			return
		}

		kind, err := filetype.Match(buffer[:n])
		if err != nil || kind == filetype.Unknown {
			c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось определить тип файла"})
			return
		}

		contentType := kind.MIME.Value
		if !allowedAttachmentMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("неподдерживаемый тип файла (%s)", contentType),
			})
			return
		}

		// Проверяем, что расширение соответствует реальному типу файла
		expectedExt := "." + kind.Extension
		if ext != expectedExt && !(ext == ".jpg" && expectedExt == ".jpeg") && !(ext == ".jpeg" && expectedExt == ".jpg") {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("расширение файла (%s) не соответствует реальному типу (%s)", ext, expectedExt),
			})
			return
		}

		// Сбрасываем позицию файла для сохранения
		if seeker, ok := src.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось сбросить позицию файла"})
				return
			}
		}

		relativePath, size, err := h.attachments.Save(c.Request.Context(), contractID, file.Filename, src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		path := filepath.ToSlash(relativePath)
		name := file.Filename
		in.FilePath = &path
		in.FileName = &name
		in.FileSize = &size
	}

	deliverable, err := h.contracts.SubmitDeliverable(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, deliverable)
}

// ApproveMilestone обрабатывает POST /contracts/:id/milestones/:milestoneID/approve.
func (h *MilestoneHandler) ApproveMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := h.contracts.ApproveMilestone(c.Request.Context(), contractID, milestoneID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// RequestRevision обрабатывает POST /contracts/:id/milestones/:milestoneID/revision.
func (h *MilestoneHandler) RequestRevision(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	milestone, err := h.contracts.RequestRevision(c.Request.Context(), contractID, milestoneID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, milestone)
}

// ListDeliverables обрабатывает GET /contracts/:id/milestones/:milestoneID/deliverables.
func (h *MilestoneHandler) ListDeliverables(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deliverables, err := h.contracts.ListDeliverables(c.Request.Context(), contractID, milestoneID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliverables": deliverables})
}

// DownloadAttachment обрабатывает GET /contracts/:id/milestones/:milestoneID/deliverables/:deliverableID/file.
// Доступ только сторонам контракта, проверка выполняется через листинг сдач.
func (h *MilestoneHandler) DownloadAttachment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deliverableID, err := common.ParseUUIDParam(c, "deliverableID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deliverables, err := h.contracts.ListDeliverables(c.Request.Context(), contractID, milestoneID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	for _, d := range deliverables {
		if d.ID != deliverableID {
			continue
		}
		if d.FilePath == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "у этой сдачи нет вложения"})
			return
		}
		f, err := h.attachments.Open(c.Request.Context(), *d.FilePath)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "файл не найден"})
			return
		}
		defer f.Close()

		name := "attachment"
		if d.FileName != nil {
			name = *d.FileName
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		stat, err := f.Stat()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		http.ServeContent(c.Writer, c.Request, name, stat.ModTime(), f)
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "сдача не найдена"})
}

// attachmentExtensions возвращает список разрешённых расширений.
func attachmentExtensions() []string {
	exts := make([]string, 0, len(allowedAttachmentExtensions))
	for ext := range allowedAttachmentExtensions {
		exts = append(exts, ext)
	}
	return exts
}
