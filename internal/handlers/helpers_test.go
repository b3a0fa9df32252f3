package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benx421/smartcards/internal/api"
	"github.com/benx421/smartcards/internal/config"
	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/repository"
	"github.com/benx421/smartcards/internal/service"
	"github.com/benx421/smartcards/internal/service/mocks"
	"github.com/benx421/smartcards/internal/session"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	carol = common.HexToAddress("0xCA70100000000000000000000000000000000003")
)

var testUnits = models.Units{Symbol: "XPT", Decimals: 18}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer is the full router over mocked services
type testServer struct {
	router    http.Handler
	session   *session.Session
	reader    *mocks.MockPortfolioReader
	operator  *mocks.MockCardOperator
	health    *mocks.MockHealthChecker
	computer  *mocks.MockPortfolioComputer
	snapshots *mocks.MockSnapshotRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		session:   session.New(session.XPhereTestnetChainID, testLogger()),
		reader:    mocks.NewMockPortfolioReader(t),
		operator:  mocks.NewMockCardOperator(t),
		health:    mocks.NewMockHealthChecker(t),
		computer:  mocks.NewMockPortfolioComputer(t),
		snapshots: mocks.NewMockSnapshotRepository(t),
	}
	tracker := service.NewPortfolioTracker(s.computer, s.snapshots, nil, nil, testLogger())
	handler := NewHandler(s.reader, s.operator, s.health, tracker, s.session, testUnits, time.UTC, testLogger())
	s.router = NewRouter(handler, repository.NewMemoryIdempotencyRepository(), prometheus.NewRegistry(), &config.Config{}, testLogger())
	return s
}

// connect attaches alice on the expected network without going through HTTP
func (s *testServer) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, s.session.Connect(alice, session.XPhereTestnetChainID))
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b) //nolint:errcheck // test bodies always marshal
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	body := decode[api.Error](t, rec)
	require.Equal(t, code, body.Error)
}

func units(s string) *big.Int {
	v, err := models.ParseUnits(s, testUnits.Decimals)
	if err != nil {
		panic(err)
	}
	return v
}
