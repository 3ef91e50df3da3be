package dqapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/middlewares"
	"bitbucket.org/mmdatafocus/dq_backend/models/reports"
	"bitbucket.org/mmdatafocus/dq_backend/reasoner"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
	"bitbucket.org/mmdatafocus/dq_backend/workflow"
	"github.com/gin-gonic/gin"
)

const moduleName = "dqapi"

// RegisterRoutes mounts the API under /api/dq and the Pub/Sub push endpoint.
func RegisterRoutes(r gin.IRouter, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = config.GetLogger()
	}
	if deps.QueryLimit <= 0 {
		deps.QueryLimit = config.DefaultQueryLimit
	}

	api := r.Group("/api/dq", middlewares.AuthMiddleware(deps.JWTSecret))
	api.POST("/entities/:id/process", ProcessHandler(deps))
	api.POST("/entities/:id/enqueue", EnqueueHandler(deps))
	api.GET("/entities/:id/issues", IssuesHandler(deps))
	api.GET("/entities/:id/suggestions", SuggestionsHandler(deps))
	api.GET("/entities/:id/runs", RunsHandler(deps))
	api.GET("/entities/:id/report.xlsx", ReportHandler(deps))
	api.GET("/profile_all", ProfileAllHandler(deps))

	r.POST("/pubsub/dq-entity", PubSubPushHandler(deps.Processor, deps.Logger))
}

func entityParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context, def int) int {
	limit := def
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidEntityID):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrEntityBusy):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func ProcessHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := entityParam(c)
		if !ok {
			return
		}
		ctx := utils.SetTriggerInContext(c.Request.Context(), utils.TriggerAPI)
		report, err := deps.Processor.ProcessEntity(ctx, id)
		if err != nil {
			config.LogError(deps.Logger, moduleName, "ProcessHandler", "process entity", id, err)
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func EnqueueHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := entityParam(c)
		if !ok {
			return
		}
		if deps.Publisher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue is not configured"})
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		msgID, err := deps.Publisher.PublishEntity(c.Request.Context(), EntityMessage{EntityID: id, CorrelationId: cid})
		if err != nil {
			config.LogError(deps.Logger, moduleName, "EnqueueHandler", "publish entity", id, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"entity_id": id, "message_id": msgID, "correlation_id": cid})
	}
}

func IssuesHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := entityParam(c)
		if !ok {
			return
		}
		rows, err := deps.Queries.LatestIssues(c.Request.Context(), id, limitQuery(c, deps.QueryLimit))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items := make([]IssueResponse, 0, len(rows))
		for _, row := range rows {
			items = append(items, mapIssue(row))
		}
		c.JSON(http.StatusOK, ListResponse[IssueResponse]{EntityID: id, Items: items})
	}
}

// SuggestionsHandler returns the stored suggestions, or their display cards
// with ?format=card.
func SuggestionsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := entityParam(c)
		if !ok {
			return
		}
		rows, err := deps.Queries.LatestSuggestions(c.Request.Context(), id, limitQuery(c, deps.QueryLimit))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if strings.EqualFold(c.Query("format"), "card") {
			cards := make([]reasoner.Card, 0, len(rows))
			for _, row := range rows {
				cards = append(cards, row.Card())
			}
			c.JSON(http.StatusOK, ListResponse[reasoner.Card]{EntityID: id, Items: cards})
			return
		}
		items := make([]SuggestionResponse, 0, len(rows))
		for _, row := range rows {
			items = append(items, mapSuggestion(row))
		}
		c.JSON(http.StatusOK, ListResponse[SuggestionResponse]{EntityID: id, Items: items})
	}
}

func RunsHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := entityParam(c)
		if !ok {
			return
		}
		runs, err := deps.Queries.LatestRuns(c.Request.Context(), id, limitQuery(c, deps.QueryLimit))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entity_id": id, "items": runs})
	}
}

// ReportHandler renders the entity workbook. With ?upload=true it is also
// archived to the report bucket.
func ReportHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := entityParam(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		limit := limitQuery(c, deps.QueryLimit)

		version := ""
		if runs, err := deps.Queries.LatestRuns(ctx, id, 1); err == nil && len(runs) > 0 && runs[0].CorrelationId != "" {
			version = fmt.Sprintf("%s:%d", runs[0].CorrelationId, limit)
		}
		data, err := reports.CachedEntityWorkbook(ctx, id, version, func() (reports.EntityReport, error) {
			issues, err := deps.Queries.LatestIssues(ctx, id, limit)
			if err != nil {
				return reports.EntityReport{}, err
			}
			suggestions, err := deps.Queries.LatestSuggestions(ctx, id, limit)
			if err != nil {
				return reports.EntityReport{}, err
			}
			summary, err := deps.Queries.IssueSummary(ctx, id)
			if err != nil {
				return reports.EntityReport{}, err
			}
			return reports.EntityReport{EntityID: id, Issues: issues, Suggestions: suggestions, Summary: summary}, nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if strings.EqualFold(c.Query("upload"), "true") {
			if deps.Uploader == nil || deps.ReportBucket == "" {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report bucket is not configured"})
				return
			}
			cid, _ := utils.GetCorrelationIdFromContext(ctx)
			uri, err := deps.Uploader(ctx, deps.ReportBucket, id, cid, data)
			if err != nil {
				config.LogError(deps.Logger, moduleName, "ReportHandler", "upload report", id, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.Header("X-Report-Location", uri)
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=dq-report-%d.xlsx", id))
		c.Data(http.StatusOK, utils.XlsxContentType, data)
	}
}

func ProfileAllHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		truncate := strings.EqualFold(c.Query("truncate_first"), "true")
		profiles, err := deps.Processor.ProfileAll(c.Request.Context(), truncate)
		if err != nil {
			config.LogError(deps.Logger, moduleName, "ProfileAllHandler", "profile all", truncate, err)
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"truncate_first": truncate, "tables": profiles})
	}
}
