package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

type Router struct {
	backend Backend
}

func NewRouter(backend Backend) *Router {
	return &Router{backend: backend}
}

// Register mounts the API under group.
func (r *Router) Register(group *gin.RouterGroup) {
	group.POST("/analyses", r.handleAnalyze)
	group.GET("/sessions", r.handleHistory)
	group.GET("/sessions/:id", r.handleSession)
	group.GET("/sessions/:id/messages", r.handleMessages)
	group.POST("/sessions/:id/reflect", r.handleReflect)
}

// handleAnalyze starts a session in the background, or runs it to
// completion when wait=true.
func (r *Router) handleAnalyze(c *gin.Context) {
	var params models.AgentInitParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !wait {
		id, err := r.backend.StartAnalysis(c.Request.Context(), params)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"session_id": id, "status": "running"})
		return
	}

	res, err := r.backend.RunAnalysis(c.Request.Context(), params)
	if res == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleHistory(c *gin.Context) {
	var params models.HistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}
	page, err := r.backend.History(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (r *Router) handleSession(c *gin.Context) {
	detail, err := r.backend.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (r *Router) handleMessages(c *gin.Context) {
	msgs, err := r.backend.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": msgs})
}

func (r *Router) handleReflect(c *gin.Context) {
	var params models.ReflectParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	records, err := r.backend.Reflect(c.Request.Context(), c.Param("id"), params)
	if err != nil && len(records) == 0 {
		writeError(c, err)
		return
	}
	body := gin.H{"lessons": records}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// writeError maps service errors to a status. Anything unrecognised is a
// server fault.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, graph.ErrNoDecision):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNoEngine):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError || status == http.StatusConflict {
		logger.L().Warn().Err(err).Str("path", c.Request.URL.Path).Msg("api error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
