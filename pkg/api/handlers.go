package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/docker/go-units"
	"github.com/labstack/echo/v4"
)

// fileView adds a human-readable size to the wire representation of a
// file record (spec.md §6 list-files op), the same units.HumanSize
// call the teacher uses when formatting file sizes for display.
type fileView struct {
	ID           int64   `json:"id"`
	CurrentPath  string  `json:"current_path"`
	Filename     string  `json:"filename"`
	ClusterID    int64   `json:"cluster_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Summary      string  `json:"summary"`
	FileType     string  `json:"file_type"`
	Size         string  `json:"size"`
	SizeBytes    int64   `json:"size_bytes"`
}

func (s *Server) getStatus(c echo.Context) error {
	st, err := s.engine.Status(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, st)
}

func paginationParams(c echo.Context) PaginationParams {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return PaginationParams{Limit: limit, Before: c.QueryParam("before"), After: c.QueryParam("after")}
}

func (s *Server) listFiles(c echo.Context) error {
	files, err := s.engine.ListFiles(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	page, meta, err := paginate(files, paginationParams(c))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}

	views := make([]fileView, len(page))
	for i, f := range page {
		views[i] = fileView{
			ID:          f.ID,
			CurrentPath: f.CurrentPath,
			Filename:    f.Filename,
			ClusterID:   f.ClusterID,
			X:           f.X,
			Y:           f.Y,
			Summary:     f.Summary,
			FileType:    f.FileType,
			Size:        units.HumanSize(float64(f.SizeBytes)),
			SizeBytes:   f.SizeBytes,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": views, "pagination": meta})
}

func (s *Server) listClusters(c echo.Context) error {
	clusters, err := s.engine.ListClusters(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, clusters)
}

func (s *Server) listEvents(c echo.Context) error {
	events, err := s.engine.ListEvents(c.Request().Context(), MaxLimit)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	page, meta, err := paginate(events, paginationParams(c))
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": page, "pagination": meta})
}

func (s *Server) semanticSearch(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return errJSON(c, http.StatusBadRequest, errMissingParam("q"))
	}
	limit := queryInt(c, "limit", 20)
	results, err := s.engine.SemanticSearch(c.Request().Context(), query, limit)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) related(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	limit := queryInt(c, "limit", 10)
	results, err := s.engine.Related(c.Request().Context(), id, limit)
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) rescan(c echo.Context) error {
	count, err := s.engine.Rescan(c.Request().Context())
	if err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"processed": count})
}

func (s *Server) switchRoot(c echo.Context) error {
	var req struct {
		Path string `json:"path"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusBadRequest, err)
	}
	if req.Path == "" {
		return errJSON(c, http.StatusBadRequest, errMissingParam("path"))
	}
	if err := s.engine.SwitchRoot(c.Request().Context(), req.Path); err != nil {
		return errJSON(c, http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func errMissingParam(name string) error {
	return errors.New("missing required parameter: " + name)
}
