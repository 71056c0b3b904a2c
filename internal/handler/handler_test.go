package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/numbleroot/autotube/internal/domain"
	"github.com/numbleroot/autotube/internal/handler/mocks"
	"github.com/numbleroot/autotube/internal/metrics"
)

const (
	testVideoURL   = "https://www.youtube.com/watch?v=0123456789a"
	testChannelURL = "https://www.youtube.com/@somechannel"
	testFeedURL    = "https://www.youtube.com/feeds/videos.xml?channel_id=UCabcdefghij0123456789AB"
)

type HandlerTestSuite struct {
	suite.Suite

	ctrl     *gomock.Controller
	submit   *mocks.MockJobSubmitter
	registry *mocks.MockChannelRegistry
	resolver *mocks.MockChannelResolver
	router   http.Handler
}

func (s *HandlerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.submit = mocks.NewMockJobSubmitter(s.ctrl)
	s.registry = mocks.NewMockChannelRegistry(s.ctrl)
	s.resolver = mocks.NewMockChannelResolver(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.router = New(s.submit, s.registry, s.resolver, metrics.NewCollector(), logger).Router()
}

func (s *HandlerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerTestSuite) post(path string, body any) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerTestSuite) status(rec *httptest.ResponseRecorder) string {
	var resp statusResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Status
}

func (s *HandlerTestSuite) TestDownloadOnDemand() {
	s.submit.EXPECT().Submit(gomock.Any(), domain.NewDownload(testVideoURL)).Return(nil)

	rec := s.post("/downloads/ondemand", downloadRequest{URL: "youtube.com/watch?v=0123456789a&list=xyz"})

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("video submitted to download queue", s.status(rec))
}

func (s *HandlerTestSuite) TestDownloadOnDemandRejectsInvalidURL() {
	rec := s.post("/downloads/ondemand", downloadRequest{URL: "https://vimeo.com/12345"})

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestDownloadOnDemandRejectsBadJSON() {
	req := httptest.NewRequest(http.MethodPost, "/downloads/ondemand", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestDownloadOnDemandQueueFailure() {
	s.submit.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(errors.New("queue closed"))

	rec := s.post("/downloads/ondemand", downloadRequest{URL: testVideoURL})

	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlerTestSuite) TestChannelFollow() {
	s.resolver.EXPECT().Resolve(gomock.Any(), "youtube.com/@SomeChannel").Return(testChannelURL, testFeedURL, nil)
	s.registry.EXPECT().Insert(gomock.Any(), &domain.Source{
		Name:      testChannelURL,
		Platform:  "youtube",
		FeedURL:   testFeedURL,
		Frequency: domain.FrequencySometimes,
	}).Return(nil)
	s.submit.EXPECT().Submit(gomock.Any(), domain.FollowJob{FeedURL: testFeedURL, DownloadAsOf: 3}).Return(nil)

	rec := s.post("/channels/follow", followRequest{
		URL:          "youtube.com/@SomeChannel",
		DownloadAsOf: 3,
		Frequency:    "sometimes",
	})

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("started following channel "+testChannelURL, s.status(rec))
}

func (s *HandlerTestSuite) TestChannelFollowRejectsUnknownFrequency() {
	rec := s.post("/channels/follow", followRequest{
		URL:       testChannelURL,
		Frequency: "hourly",
	})

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestChannelFollowRejectsNegativeBackfill() {
	rec := s.post("/channels/follow", followRequest{
		URL:          testChannelURL,
		DownloadAsOf: -1,
		Frequency:    "often",
	})

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestChannelFollowRejectsUnresolvableChannel() {
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("", "", errors.New("channel page returned 404"))

	rec := s.post("/channels/follow", followRequest{
		URL:       "youtube.com/@ghost",
		Frequency: "rarely",
	})

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerTestSuite) TestChannelFollowDuplicate() {
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(testChannelURL, testFeedURL, nil)
	s.registry.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(domain.ErrAlreadyFollowed)

	rec := s.post("/channels/follow", followRequest{
		URL:       testChannelURL,
		Frequency: "often",
	})

	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("submitted channel is already being followed", s.status(rec))
}

func (s *HandlerTestSuite) TestChannelFollowStoreFailure() {
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(testChannelURL, testFeedURL, nil)
	s.registry.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	rec := s.post("/channels/follow", followRequest{
		URL:       testChannelURL,
		Frequency: "often",
	})

	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlerTestSuite) TestChannelFollowQueueFailure() {
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(testChannelURL, testFeedURL, nil)
	s.registry.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
	s.submit.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(errors.New("queue closed"))

	rec := s.post("/channels/follow", followRequest{
		URL:       testChannelURL,
		Frequency: "often",
	})

	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlerTestSuite) TestMetricsEndpoint() {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "autotube_")
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
