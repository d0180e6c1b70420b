package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/orgsync/directory-sync/internal/api/dto"
	"github.com/orgsync/directory-sync/internal/domain"
	"github.com/orgsync/directory-sync/internal/service"
	apperrors "github.com/orgsync/directory-sync/pkg/util/errorutil"
)

// SyncRunner is the part of the sync service the HTTP layer drives.
type SyncRunner interface {
	PerformFullSync(ctx context.Context, opts domain.SyncOptions) *domain.SyncResult
	GetSyncStatus(ctx context.Context) (*domain.SyncStatus, error)
}

// SyncHandler exposes manual sync triggering and status.
type SyncHandler struct {
	sync SyncRunner
}

// NewSyncHandler constructs handler.
func NewSyncHandler(runner SyncRunner) *SyncHandler {
	return &SyncHandler{sync: runner}
}

// Trigger handles POST /api/v1/directory/sync. The run outlives the request
// context so a dropped client does not abort it halfway.
func (h *SyncHandler) Trigger(c *fiber.Ctx) error {
	var req dto.SyncTriggerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}
	if req.DepartmentOnly && req.UserOnly {
		return apperrors.NewValidationError("department_only and user_only are mutually exclusive", nil)
	}
	if req.BatchSize < 0 {
		return apperrors.NewValidationError("batch_size must not be negative", map[string]any{"batch_size": req.BatchSize})
	}

	result := h.sync.PerformFullSync(context.WithoutCancel(c.UserContext()), req.Options())
	if service.IsLockContention(result) {
		return apperrors.NewConflict(service.ErrLockContention.Error(), map[string]any{"run_id": result.RunID})
	}

	return c.JSON(fiber.Map{"data": dto.NewSyncResultResponse(result)})
}

// Status handles GET /api/v1/directory/sync/status.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	status, err := h.sync.GetSyncStatus(c.UserContext())
	if err != nil {
		return apperrors.NewUnavailable("sync status unavailable", err)
	}
	return c.JSON(fiber.Map{"data": dto.NewSyncStatusResponse(status)})
}
