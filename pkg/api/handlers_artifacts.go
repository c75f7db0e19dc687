package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scope/pkg/artifact"
	"scope/pkg/models"
	"scope/pkg/workspace"
)

// ArtifactListResponse is the result of GET /api/v1/artifacts.
type ArtifactListResponse struct {
	Locations []string          `json:"locations"`
	Artifacts []models.Artifact `json:"artifacts"`
}

// listArtifacts handles GET /api/v1/artifacts?open=Foo.sol&open=Bar.sol
func (s *Server) listArtifacts(c *gin.Context) {
	open := workspace.FilterSolidity(c.QueryArray("open"))
	found := s.locator.Find(c.Request.Context(), s.workspace, open)

	locations := make([]string, 0, len(found))
	for _, a := range found {
		locations = append(locations, a.Location)
	}

	c.JSON(http.StatusOK, ArtifactListResponse{Locations: locations, Artifacts: found})
}

// getArtifactContent handles GET /api/v1/artifacts/content?location=...
func (s *Server) getArtifactContent(c *gin.Context) {
	location, ok := s.artifactLocation(c)
	if !ok {
		return
	}

	data, err := artifact.ReadFile(c.Request.Context(), location)
	if err != nil {
		s.readFailed(c, location, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// getArtifactSummary handles GET /api/v1/artifacts/summary?location=...
func (s *Server) getArtifactSummary(c *gin.Context) {
	location, ok := s.artifactLocation(c)
	if !ok {
		return
	}

	data, err := artifact.ReadFile(c.Request.Context(), location)
	if err != nil {
		s.readFailed(c, location, err)
		return
	}
	summary, err := artifact.Summarize(location, data)
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// artifactLocation validates the location query and keeps reads inside the
// workspace root.
func (s *Server) artifactLocation(c *gin.Context) (string, bool) {
	location := c.Query("location")
	if err := s.validator.ValidateLocation(location); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return "", false
	}
	if _, ok := s.workspace.Root(); !ok {
		abortWithError(c, http.StatusConflict, ErrNoWorkspace)
		return "", false
	}
	path := artifact.Path(location)
	if !s.workspace.Contains(path) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "location is outside the workspace"})
		return "", false
	}
	return path, true
}

func (s *Server) readFailed(c *gin.Context, location string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		abortWithError(c, http.StatusNotFound, err)
		return
	}
	s.logger.Error("Failed to read artifact", zap.String("location", location), zap.Error(err))
	abortWithError(c, http.StatusInternalServerError, err)
}
