// Package handler exposes the HTTP intake API: on-demand video downloads
// and channel follows, plus the metrics endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/numbleroot/autotube/internal/domain"
	"github.com/numbleroot/autotube/internal/metrics"
	"github.com/numbleroot/autotube/internal/youtube"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// JobSubmitter is the send side of the job queue.
type JobSubmitter interface {
	Submit(ctx context.Context, job domain.Job) error
}

// ChannelRegistry persists newly followed channels.
type ChannelRegistry interface {
	Insert(ctx context.Context, source *domain.Source) error
}

// ChannelResolver validates a channel URL against the live site and
// returns its canonical form together with the channel's RSS feed URL.
type ChannelResolver interface {
	Resolve(ctx context.Context, raw string) (string, string, error)
}

type Handler struct {
	submit    JobSubmitter
	registry  ChannelRegistry
	resolver  ChannelResolver
	collector *metrics.Collector
	logger    *slog.Logger
}

func New(
	submit JobSubmitter,
	registry ChannelRegistry,
	resolver ChannelResolver,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		submit:    submit,
		registry:  registry,
		resolver:  resolver,
		collector: collector,
		logger:    logger,
	}
}

// Router wires all API routes onto a chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Post("/downloads/ondemand", h.postDownloadOnDemand)
	r.Post("/channels/follow", h.postChannelFollow)
	r.Handle("/metrics", h.collector.Handler())

	return r
}

type downloadRequest struct {
	URL string `json:"url"`
}

type followRequest struct {
	URL          string `json:"url"`
	DownloadAsOf int    `json:"download_as_of"`
	Frequency    string `json:"frequency"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (h *Handler) postDownloadOnDemand(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	videoURL, err := youtube.ValidateVideoURL(req.URL)
	if err != nil {
		h.logger.Debug("rejected download request", "url", req.URL, "error", err)
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.submit.Submit(r.Context(), domain.NewDownload(videoURL)); err != nil {
		h.logger.Warn("failed to submit download job", "url", videoURL, "error", err)
		writeStatus(w, http.StatusInternalServerError, "video could not be submitted to download queue")
		return
	}

	h.logger.Debug("accepted video for download", "url", videoURL)
	writeStatus(w, http.StatusCreated, "video submitted to download queue")
}

func (h *Handler) postChannelFollow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	freq, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "field 'frequency' needs to be one of: 'often', 'sometimes', 'rarely'")
		return
	}

	if req.DownloadAsOf < 0 {
		writeStatus(w, http.StatusBadRequest, "field 'download_as_of' must not be negative")
		return
	}

	channelURL, feedURL, err := h.resolver.Resolve(r.Context(), req.URL)
	if err != nil {
		h.logger.Debug("rejected follow request", "url", req.URL, "error", err)
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	source := &domain.Source{
		Name:      channelURL,
		Platform:  "youtube",
		FeedURL:   feedURL,
		Frequency: freq,
	}
	if err := h.registry.Insert(r.Context(), source); err != nil {
		if errors.Is(err, domain.ErrAlreadyFollowed) {
			writeStatus(w, http.StatusConflict, "submitted channel is already being followed")
			return
		}
		h.logger.Warn("failed to insert followed channel", "channel", channelURL, "error", err)
		writeStatus(w, http.StatusInternalServerError, "inserting new channel to follow into database failed")
		return
	}

	follow := domain.FollowJob{FeedURL: feedURL, DownloadAsOf: req.DownloadAsOf}
	if err := h.submit.Submit(r.Context(), follow); err != nil {
		h.logger.Warn("failed to submit follow job", "channel", channelURL, "error", err)
		writeStatus(w, http.StatusInternalServerError, "initial download of new channel could not be sent to queue")
		return
	}

	h.logger.Debug("started following channel", "channel", channelURL, "feed_url", feedURL)
	writeStatus(w, http.StatusCreated, fmt.Sprintf("started following channel %s", channelURL))
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: status})
}
