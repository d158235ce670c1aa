package audit

import (
	"encoding/json"

	"restopos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Data        json.RawMessage    `json:"data"`
}

// GET /api/auditoria?entity_type=invoice&entity_id=1&user_id=2&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType: c.Query("entity_type"),
			Limit:      c.QueryInt("limit", 100),
		}
		if id := c.QueryInt("entity_id", 0); id > 0 {
			f.EntityID = uint(id)
		}
		if id := c.QueryInt("user_id", 0); id > 0 {
			f.UserID = uint(id)
		}

		logs, err := List(c.UserContext(), db, f)
		if err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				Data:        json.RawMessage(log.Data),
			})
		}
		return c.JSON(resp)
	}
}
