// Package httpadapter exposes the conversation service over HTTP with gin.
package httpadapter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/app/archive"
	"github.com/PabloGalante/ryokai-gateway/internal/app/conversation"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

type Server struct {
	svc     *conversation.Service
	archive *archive.Service
}

func NewServer(svc *conversation.Service, arch *archive.Service) http.Handler {
	s := &Server{svc: svc, archive: arch}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(), cors())

	router.GET("/healthz", s.healthz)

	sessions := router.Group("/sessions")
	{
		sessions.GET("", s.listSessions)
		sessions.POST("", s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.deleteSession)
		sessions.POST("/:id/activate", s.activateSession)
		sessions.GET("/:id/export", s.exportSession)
	}

	messages := router.Group("/messages")
	{
		messages.POST("", s.submit)
		messages.POST("/retry", s.retry)
		messages.POST("/stop", s.stop)
		messages.PUT("/:id", s.editMessage)
		messages.POST("/:id/regenerate", s.regenerate)
	}

	router.GET("/credential", s.getCredential)
	router.PUT("/credential", s.setCredential)
	router.DELETE("/credential", s.clearCredential)

	router.GET("/persona", s.getPersona)
	router.GET("/settings", s.getSettings)
	router.PUT("/settings", s.updateSettings)

	return router
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Sessions

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.svc.Sessions()})
}

func (s *Server) createSession(c *gin.Context) {
	sess, err := s.svc.NewSession(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.svc.Session(domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.svc.DeleteSession(c.Request.Context(), domain.SessionID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) activateSession(c *gin.Context) {
	if err := s.svc.SwitchSession(c.Request.Context(), domain.SessionID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s.svc.ActiveSession()))
}

func (s *Server) exportSession(c *gin.Context) {
	name, doc, err := s.archive.Export(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(doc))
}

// Messages

func (s *Server) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := conversation.SubmitInput{Prompt: req.Prompt, Style: domain.ParseStyle(req.Style)}
	if req.File != nil {
		in.File = &domain.Attachment{Name: req.File.Name, MIMEType: req.File.MIMEType, Data: req.File.Data}
	}

	res, err := s.svc.Submit(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	writeRun(c, res)
}

func (s *Server) retry(c *gin.Context) {
	res, err := s.svc.Retry(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeRun(c, res)
}

func (s *Server) stop(c *gin.Context) {
	stopped, err := s.svc.Stop(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

func (s *Server) editMessage(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := s.svc.EditMessage(c.Request.Context(), domain.MessageID(c.Param("id")), req.Text, req.Regenerate)
	if err != nil {
		writeError(c, err)
		return
	}
	writeRun(c, res)
}

func (s *Server) regenerate(c *gin.Context) {
	res, err := s.svc.Regenerate(c.Request.Context(), domain.MessageID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeRun(c, res)
}

// Credential, persona and settings

func (s *Server) getCredential(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Credential())
}

func (s *Server) setCredential(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.svc.SetCredential(c.Request.Context(), req.Key); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.Credential())
}

func (s *Server) clearCredential(c *gin.Context) {
	if err := s.svc.ClearCredential(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getPersona(c *gin.Context) {
	p := s.svc.Persona()
	c.JSON(http.StatusOK, gin.H{"summary": p.Summary, "awakeningStage": p.Stage()})
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Settings())
}

func (s *Server) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.Awakened != nil {
		if err := s.svc.SetAwakened(ctx, *req.Awakened); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.FastMode != nil {
		if err := s.svc.SetFastMode(ctx, *req.FastMode); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.svc.Settings())
}

// Helpers

// writeRun answers 202 while the run continues in the background and 200 with
// the outcome once it has finished.
func writeRun(c *gin.Context, res *conversation.Result) {
	status := http.StatusOK
	if res.Outcome == nil {
		status = http.StatusAccepted
	}
	c.JSON(status, runResponse{
		SessionID: string(res.SessionID),
		Message:   toMessageResponse(res.Message),
		Outcome:   toOutcomeResponse(res.Outcome),
	})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoCredential), errors.Is(err, domain.ErrCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "reauth": true})
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyPrompt), errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrNothingToRetry):
		badRequest(c, err.Error())
	default:
		observability.LoggerFromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
