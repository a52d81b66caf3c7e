package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/accounts"
	"smartattend/internal/auth"
	"smartattend/internal/i18n"
	"smartattend/internal/roster"
)

type sessionResponse struct {
	Token   auth.Token       `json:"token"`
	Teacher accounts.Teacher `json:"teacher"`
}

func (h *Handler) issue(c *gin.Context, status int, t accounts.Teacher) {
	tok, err := auth.Issue(t.ID, t.Name, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.SessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, sessionResponse{Token: tok, Teacher: t})
}

// ---------- Auth ----------

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.accounts.Login(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issue(c, http.StatusOK, t)
}

type registerRequest struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Subjects []string `json:"subjects"`
	Classes  []string `json:"classes"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, s := range req.Subjects {
		if !roster.ValidSubject(s) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown subject: " + s})
			return
		}
	}
	t, err := h.accounts.Register(c.Request.Context(), accounts.Teacher{
		Name:     req.Name,
		Email:    req.Email,
		Subjects: req.Subjects,
		Classes:  req.Classes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.issue(c, http.StatusCreated, t)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.accounts.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- Profile ----------

func (h *Handler) Me(c *gin.Context) {
	t, ok := h.teacher(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) Rename(c *gin.Context) {
	t, ok := h.teacher(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.accounts.Rename(c.Request.Context(), t.ID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) AddClass(c *gin.Context) {
	t, ok := h.teacher(c)
	if !ok {
		return
	}
	var req struct {
		Level   string `json:"level" binding:"required"`
		Section string `json:"section"`
		Number  string `json:"number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	classID, err := roster.ClassLabel(req.Level, req.Section, req.Number)
	if err != nil {
		writeError(c, err)
		return
	}
	t, err = h.accounts.AddClass(c.Request.Context(), t.ID, classID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) RemoveClass(c *gin.Context) {
	t, ok := h.teacher(c)
	if !ok {
		return
	}
	t, err := h.accounts.RemoveClass(c.Request.Context(), t.ID, c.Param("class"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ---------- Preferences ----------

func (h *Handler) Preferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.accounts.Preferences(c.Request.Context()))
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var req struct {
		DarkMode *bool  `json:"darkMode"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if req.Language != "" {
		l, ok := i18n.Parse(req.Language)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language: " + req.Language})
			return
		}
		if err := h.accounts.SetLanguage(ctx, l); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.DarkMode != nil {
		if err := h.accounts.SetTheme(ctx, *req.DarkMode); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.accounts.Preferences(ctx))
}
