package handler

import (
	"bytes"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"smartattend/internal/accounts"
	"smartattend/internal/advisory"
	"smartattend/internal/attendance"
	"smartattend/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type draftView struct {
	ClassID           string             `json:"classId"`
	Resumed           bool               `json:"resumed"`
	Total             int                `json:"total"`
	PresentCount      int                `json:"presentCount"`
	NeedsVerification int                `json:"needsVerification"`
	Entries           []attendance.Entry `json:"entries"`
}

func viewOf(d *attendance.Draft) draftView {
	return draftView{
		ClassID:           d.ClassID(),
		Resumed:           d.Resumed(),
		Total:             len(d.Students()),
		PresentCount:      d.PresentCount(),
		NeedsVerification: d.NeedsVerification(),
		Entries:           d.Entries(),
	}
}

// classOf returns the class path parameter if the teacher holds it.
func (h *Handler) classOf(c *gin.Context) (accounts.Teacher, string, bool) {
	t, ok := h.teacher(c)
	if !ok {
		return t, "", false
	}
	classID := c.Param("class")
	if !slices.Contains(t.Classes, classID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "class not assigned to teacher"})
		return t, "", false
	}
	return t, classID, true
}

// withDraft opens the class draft under the class lock and runs fn on it.
func (h *Handler) withDraft(c *gin.Context, fn func(d *attendance.Draft) (gin.H, error)) {
	_, classID, ok := h.classOf(c)
	if !ok {
		return
	}
	unlock := h.lock(classID)
	defer unlock()

	d := h.attendance.Open(c.Request.Context(), classID)
	extra, err := fn(d)
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{"draft": viewOf(d)}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// ---------- Draft ----------

func (h *Handler) GetDraft(c *gin.Context) {
	h.withDraft(c, func(*attendance.Draft) (gin.H, error) { return nil, nil })
}

func (h *Handler) Toggle(c *gin.Context) {
	h.withDraft(c, func(d *attendance.Draft) (gin.H, error) {
		return nil, d.ToggleCheck(c.Request.Context(), c.Param("student"))
	})
}

func (h *Handler) Verify(c *gin.Context) {
	h.withDraft(c, func(d *attendance.Draft) (gin.H, error) {
		return nil, d.Verify(c.Request.Context(), c.Param("student"))
	})
}

func (h *Handler) VerifyAll(c *gin.Context) {
	h.withDraft(c, func(d *attendance.Draft) (gin.H, error) {
		n, err := d.VerifyAll(c.Request.Context())
		return gin.H{"changed": n}, err
	})
}

func (h *Handler) MarkAllPresent(c *gin.Context) {
	h.withDraft(c, func(d *attendance.Draft) (gin.H, error) {
		return nil, d.MarkAllPresent(c.Request.Context())
	})
}

// ---------- Confirmation ----------

type confirmResponse struct {
	ClassID   string              `json:"classId"`
	Time      string              `json:"time"`
	Timestamp int64               `json:"timestamp"`
	Records   []attendance.Record `json:"records"`
	AbsentIDs []string            `json:"absentIds"`
	Report    string              `json:"report"`
	Mailto    string              `json:"mailto"`
}

func (h *Handler) Confirm(c *gin.Context) {
	t, classID, ok := h.classOf(c)
	if !ok {
		return
	}
	release, ok := h.reserve(classID)
	if !ok {
		writeError(c, attendance.ErrSyncInProgress)
		return
	}
	defer release()
	unlock := h.lock(classID)
	defer unlock()

	ctx := c.Request.Context()
	conf, err := h.attendance.Confirm(ctx, t.Name, classID)
	if err != nil {
		writeError(c, err)
		return
	}
	text := report.Format(report.Input{
		Teacher:  t.Name,
		ClassID:  classID,
		Time:     conf.Time,
		Language: h.accounts.Language(ctx),
		Students: conf.Students,
		Records:  conf.Records,
	})
	c.JSON(http.StatusOK, confirmResponse{
		ClassID:   classID,
		Time:      conf.Time,
		Timestamp: conf.Timestamp,
		Records:   conf.Records,
		AbsentIDs: conf.AbsentIDs,
		Report:    text,
		Mailto:    report.MailtoURL(h.cfg.ReportRecipient, classID, text),
	})
}

// ---------- Dashboard ----------

func (h *Handler) Dashboard(c *gin.Context) {
	t, ok := h.teacher(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"teacher":   t,
		"dashboard": h.attendance.Dashboard(c.Request.Context(), t.Classes),
	})
}

func (h *Handler) Advisory(c *gin.Context) {
	t, ok := h.teacher(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	dash := h.attendance.Dashboard(ctx, t.Classes)
	text := h.advisor.Advise(ctx, advisory.Request{
		TeacherName: t.Name,
		AbsentCount: dash.TotalAbsents,
		Language:    h.accounts.Language(ctx),
	})
	c.JSON(http.StatusOK, gin.H{"text": text, "totalAbsents": dash.TotalAbsents})
}

func (h *Handler) ExportAbsences(c *gin.Context) {
	if _, ok := h.teacher(c); !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteAbsenceWorkbook(&buf, h.absences.AllAbsences(c.Request.Context())); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="absences.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
