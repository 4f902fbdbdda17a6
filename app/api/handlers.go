package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-cast/app/cache"
	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/feed"
	"github.com/lysyi3m/rss-cast/app/pipeline"
	"github.com/lysyi3m/rss-cast/app/tasks"
)

const rssContentType = "application/rss+xml; charset=utf-8"

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		feeds:       deps.Feeds,
		content:     deps.Content,
		jobs:        deps.Jobs,
		sources:     deps.Sources,
		renderer:    deps.Renderer,
		pipeline:    deps.Pipeline,
		ingestor:    deps.Ingestor,
		scheduler:   deps.Scheduler,
		configCache: deps.ConfigCache,
		cache:       deps.Cache,
		cacheTTL:    deps.CacheTTL,
		baseURL:     deps.BaseURL,
		batchSize:   max(deps.BatchSize, 1),
		stuckAfter:  deps.StuckAfter,
		feedLimit:   max(deps.FeedLimit, 1),
		generator:   deps.Generator,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user")
	feedID := c.Param("feed")

	cacheKey := cache.FeedKey(userID, feedID)
	if h.cache != nil && h.cacheTTL > 0 {
		if body, ok, err := h.cache.Get(ctx, cacheKey); err != nil {
			slog.Warn("Feed cache lookup failed", "user_id", userID, "feed_id", feedID, "error", err)
		} else if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, rssContentType, []byte(body))
			return
		}
	}

	podcastFeed, err := h.feeds.GetFeed(ctx, userID, feedID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "user_id", userID, "feed_id", feedID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if podcastFeed == nil {
		c.Status(http.StatusNotFound)
		return
	}

	items, err := h.content.GetFeedItems(ctx, userID, h.feedLimit)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed_items", "user_id", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	episodes := feed.Episodes(items)
	rss, err := h.renderer.Render(ctx, episodes, feed.FeedInfo{
		UserID:      userID,
		FeedID:      feedID,
		Title:       podcastFeed.Title,
		Description: podcastFeed.Description,
		FeedURL:     podcastFeed.FeedURL,
		Link:        h.baseURL,
		BaseURL:     h.baseURL,
		Author:      podcastFeed.Author,
		Generator:   h.generator,
	})
	if err != nil {
		slog.Error("RSS generation error", "user_id", userID, "feed_id", feedID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if h.cache != nil && h.cacheTTL > 0 {
		if err := h.cache.Set(ctx, cacheKey, rss, h.cacheTTL); err != nil {
			slog.Warn("Feed cache store failed", "user_id", userID, "feed_id", feedID, "error", err)
		}
		c.Header("X-Cache", "MISS")
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(episodes)))
	c.Data(http.StatusOK, rssContentType, []byte(rss))
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feeds.GetFeedCount(ctx); err == nil {
		health["feeds"] = feedCount
	} else {
		health["status"] = "degraded"
		health["database_error"] = err.Error()
	}

	if h.configCache != nil {
		health["loaded_sources"] = h.configCache.GetConfigCount()
	}

	if checker, ok := h.cache.(HealthChecker); ok {
		health["cache"] = checker.Health(ctx)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.jobs.CountByStatus(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "count_jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	jobs := map[string]int{}
	for _, status := range []database.JobStatus{database.JobStatusPending, database.JobStatusRunning, database.JobStatusDone, database.JobStatusError} {
		jobs[string(status)] = counts[status]
	}

	stats := gin.H{"jobs": jobs}
	if n, err := h.content.GetContentCount(ctx); err == nil {
		stats["content_items"] = n
	}
	if n, err := h.sources.GetSourceCount(ctx); err == nil {
		stats["sources"] = n
	}
	if n, err := h.feeds.GetFeedCount(ctx); err == nil {
		stats["feeds"] = n
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIRunJobs(c *gin.Context) {
	if h.scheduler != nil {
		task := tasks.NewProcessJobsTask(h.batchSize, h.pipeline)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing process task", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue job processing", "details": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "task": gin.H{"id": task.ID, "type": task.Type}})
		return
	}

	stats, err := h.pipeline.RunBatch(c.Request.Context(), h.batchSize)
	if err != nil {
		slog.Error("Job batch failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Job processing failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "processed": stats.Processed, "done": stats.Done, "failed": stats.Failed})
}

func (h *Handler) APIIngest(c *gin.Context) {
	stats, err := h.ingestor.Run(c.Request.Context())
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ingestion failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"sources":    stats.Sources,
		"failed":     stats.Failed,
		"created":    stats.Created,
		"duplicates": stats.Duplicates,
		"filtered":   stats.Filtered,
		"triggered":  stats.Triggered,
	})
}

func (h *Handler) APIListJobs(c *gin.Context) {
	status := database.JobStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "status": status})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, 500)
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), status, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		result = append(result, gin.H{
			"id":            job.ID,
			"content_id":    job.ContentID,
			"status":        job.Status,
			"error_kind":    job.ErrorKind,
			"error_message": job.ErrorMessage,
			"started_at":    job.StartedAt,
			"finished_at":   job.FinishedAt,
			"created_at":    job.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"jobs": result, "total": len(result)})
}

func (h *Handler) APIRequeueJob(c *gin.Context) {
	id := c.Param("id")

	err := h.pipeline.Requeue(c.Request.Context(), id)
	switch {
	case errors.Is(err, pipeline.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, pipeline.ErrJobNotFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		slog.Error("Requeue failed", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Requeue failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "status": database.JobStatusPending})
	}
}

func (h *Handler) APIReclaimJobs(c *gin.Context) {
	count, err := h.pipeline.ReclaimStuck(c.Request.Context(), h.stuckAfter)
	if err != nil {
		slog.Error("Reclaim failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reclaim failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "reclaimed": count})
}

func (h *Handler) APISubmitContent(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	contentID, jobID, err := h.ingestor.Submit(c.Request.Context(), pipeline.Submission{
		UserID: req.UserID,
		URL:    req.URL,
		Title:  req.Title,
	})
	switch {
	case errors.Is(err, pipeline.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrDuplicateURL):
		c.JSON(http.StatusConflict, gin.H{"error": "URL already submitted"})
	case err != nil:
		slog.Error("Submission failed", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Submission failed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"content_id": contentID, "job_id": jobID})
	}
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.sources.GetEnabledSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]gin.H, 0, len(sources))
	for _, source := range sources {
		result = append(result, gin.H{
			"name":             source.Name,
			"title":            source.Title,
			"url":              source.FeedURL,
			"category":         source.Category,
			"refresh_interval": (time.Duration(source.RefreshInterval) * time.Second).String(),
			"last_fetched_at":  source.LastFetchedAt,
			"next_fetch_at":    source.NextFetchAt,
			"last_error":       source.LastError,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": result, "total": len(result)})
}
