package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"nicepg/internal/database"
	"nicepg/internal/middleware"
	"nicepg/internal/migration"
)

// Migrator is the part of migration.Engine the admin API drives.
type Migrator interface {
	Up(ctx context.Context) ([]migration.Migration, error)
	Down(ctx context.Context) (*migration.Migration, error)
	Status(ctx context.Context) (*migration.Status, error)
	CurrentVersion(ctx context.Context) (int64, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	migrator Migrator
	db       Pinger
	logger   *slog.Logger
}

func NewHandler(migrator Migrator, db Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		migrator: migrator,
		db:       db,
		logger:   logger,
	}
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.migrator.Status(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to get migration status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) MigrateUp(c *gin.Context) {
	applied, err := h.migrator.Up(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to apply migrations", err)
		return
	}
	if applied == nil {
		applied = []migration.Migration{}
	}

	current, err := h.migrator.CurrentVersion(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to read current version", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"applied":         applied,
		"current_version": current,
	})
}

func (h *Handler) MigrateDown(c *gin.Context) {
	reverted, err := h.migrator.Down(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to roll back migration", err)
		return
	}

	current, err := h.migrator.CurrentVersion(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to read current version", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reverted":        reverted,
		"current_version": current,
	})
}

// fail maps a migration error to a response. Unique violations and version
// races are conflicts, everything else is a server error.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	var uniqueErr *database.UniqueIndexError
	switch {
	case errors.As(err, &uniqueErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      msg,
			"details":    err.Error(),
			"table":      uniqueErr.Table,
			"constraint": uniqueErr.Constraint,
			"columns":    uniqueErr.Columns,
		})
	case errors.Is(err, migration.ErrVersionChanged):
		c.JSON(http.StatusConflict, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	default:
		h.logger.Error(msg, "error", err, "request_id", c.GetString(middleware.RequestIDKey))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   msg,
			"details": err.Error(),
		})
	}
}
