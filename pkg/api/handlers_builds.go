package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scope/pkg/build"
	"scope/pkg/models"
)

// BuildRequest is the payload for POST /api/v1/builds. An empty command
// runs the configured default.
type BuildRequest struct {
	Command string `json:"command"`
}

// BuildResponse reports a finished build.
type BuildResponse struct {
	*models.BuildResult
	Error string `json:"error,omitempty"`
}

// runBuild handles POST /api/v1/builds. The response is written once the
// build terminal closes.
func (s *Server) runBuild(c *gin.Context) {
	var req BuildRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
	}
	command := req.Command
	if command == "" {
		command = s.buildCommand
	}
	if err := s.validator.ValidateCommand(command); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	h, err := s.builds.Start(ctx, command)
	if err != nil {
		s.logger.Error("Failed to start build", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	_, err = h.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Client went away; the terminal keeps running.
		h.Abandon(ctxErr)
		return
	}

	resp := BuildResponse{BuildResult: h.Result()}
	if errors.Is(err, build.ErrIndeterminateExit) {
		resp.Error = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
