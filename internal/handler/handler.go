// Package handler exposes the attendance services over HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"smartattend/internal/accounts"
	"smartattend/internal/advisory"
	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/registry"
	"smartattend/internal/roster"
)

// AbsenceLog lists every absence still in the registry.
type AbsenceLog interface {
	AllAbsences(ctx context.Context) []registry.AbsenceEntry
}

// Advisor produces advisory text. It never fails.
type Advisor interface {
	Advise(ctx context.Context, req advisory.Request) string
}

// Config carries the token and report settings.
type Config struct {
	JWTIssuer       string
	JWTSigningKey   string
	SessionTTL      time.Duration
	ReportRecipient string
	// Health reports backend reachability for /healthz. Nil means healthy.
	Health func(ctx context.Context) map[string]bool
}

type Handler struct {
	cfg        Config
	accounts   *accounts.Service
	attendance *attendance.Service
	absences   AbsenceLog
	advisor    Advisor

	locksMu    sync.Mutex
	locks      map[string]*sync.Mutex
	confirming map[string]bool
}

func New(cfg Config, acc *accounts.Service, att *attendance.Service, absences AbsenceLog, advisor Advisor) *Handler {
	return &Handler{
		cfg:        cfg,
		accounts:   acc,
		attendance: att,
		absences:   absences,
		advisor:    advisor,
		locks:      make(map[string]*sync.Mutex),
		confirming: make(map[string]bool),
	}
}

// Routes mounts every endpoint on r. On authenticated routes mw runs after
// the bearer token check, so limiters can key on the teacher.
func (h *Handler) Routes(r gin.IRouter, mw ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	public := r.Group("/v1", mw...)
	public.GET("/catalog", h.Catalog)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/register", h.Register)

	v1 := r.Group("/v1", auth.TeacherAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))
	v1.Use(mw...)
	v1.POST("/auth/logout", h.Logout)
	v1.GET("/me", h.Me)
	v1.PUT("/me/name", h.Rename)
	v1.POST("/me/classes", h.AddClass)
	v1.DELETE("/me/classes/:class", h.RemoveClass)
	v1.GET("/preferences", h.Preferences)
	v1.PUT("/preferences", h.UpdatePreferences)
	v1.GET("/dashboard", h.Dashboard)
	v1.POST("/advisory", h.Advisory)
	v1.GET("/absences.xlsx", h.ExportAbsences)

	cls := v1.Group("/classes/:class")
	cls.GET("/draft", h.GetDraft)
	cls.POST("/draft/toggle/:student", h.Toggle)
	cls.POST("/draft/verify/:student", h.Verify)
	cls.POST("/draft/verify-all", h.VerifyAll)
	cls.POST("/draft/mark-all-present", h.MarkAllPresent)
	cls.POST("/confirm", h.Confirm)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	if h.cfg.Health != nil {
		for name, ok := range h.cfg.Health(c.Request.Context()) {
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
	}
	c.JSON(status, body)
}

// ---------- Catalog ----------

func (h *Handler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"levels":    roster.Levels,
		"sections":  roster.Sections,
		"numbers":   roster.Numbers,
		"subjects":  roster.Subjects,
		"classSize": roster.ClassSize,
	})
}

// teacher resolves the token subject to a stored profile.
func (h *Handler) teacher(c *gin.Context) (accounts.Teacher, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return accounts.Teacher{}, false
	}
	t, err := h.accounts.Get(c.Request.Context(), claims.TeacherID())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown teacher"})
		return accounts.Teacher{}, false
	}
	return t, true
}

// lock serializes draft access per class.
func (h *Handler) lock(classID string) func() {
	h.locksMu.Lock()
	m, ok := h.locks[classID]
	if !ok {
		m = &sync.Mutex{}
		h.locks[classID] = m
	}
	h.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

// reserve claims classID for one confirmation. ok is false while another
// confirmation of the class is running.
func (h *Handler) reserve(classID string) (release func(), ok bool) {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	if h.confirming[classID] {
		return nil, false
	}
	h.confirming[classID] = true
	return func() {
		h.locksMu.Lock()
		delete(h.confirming, classID)
		h.locksMu.Unlock()
	}, true
}

func writeError(c *gin.Context, err error) {
	var vr *attendance.VerificationRequiredError
	switch {
	case errors.As(err, &vr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "needs_verification",
			"studentId": vr.StudentID,
			"student":   vr.StudentName,
		})
	case errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "next": "register"})
	case errors.Is(err, attendance.ErrUnknownStudent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, accounts.ErrInvalidTeacher), errors.Is(err, roster.ErrInvalidClass):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSyncFailed):
		log.Printf("handler: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "session sync failed, draft kept"})
	default:
		log.Printf("handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
