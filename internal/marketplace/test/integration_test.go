package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/auth"
	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/db/dbtest"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/handlers"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/gartstein/harvest/internal/marketplace/seed"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const jwtSecret = "integration-secret"

type IntegrationTestSuite struct {
	suite.Suite
	ctx        context.Context
	repo       *db.Repository
	index      *index.Manager
	reconciler *index.Reconciler
	services   handlers.Services
	seeded     *seed.Result
	server     *httptest.Server
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupTest() {
	t := s.T()
	logger := zaptest.NewLogger(t)
	s.ctx = context.Background()
	s.repo = dbtest.NewRepository(t)
	s.index = index.NewManager(logger)
	s.reconciler = index.NewReconciler(s.repo, s.index, index.ReconcilerConfig{}, logger)
	indexer := controller.NewIndexer(s.index, s.reconciler, logger)
	producer := events.Discard{}

	accounts := controller.NewAccountService(s.repo, producer, logger)
	profiles := controller.NewProfileService(s.repo, indexer, producer, logger)
	composer := controller.NewComposer(s.repo, indexer, producer, logger)
	jobs := controller.NewJobService(s.repo, indexer, producer, logger)
	applications := controller.NewApplicationService(s.repo, producer, logger)
	messages := controller.NewMessageService(s.repo, producer, logger)

	var err error
	s.seeded, err = seed.Run(s.ctx, seed.Services{
		Store:        s.repo,
		Accounts:     accounts,
		Profiles:     profiles,
		Composer:     composer,
		Jobs:         jobs,
		Applications: applications,
		Messages:     messages,
	}, "", logger)
	s.Require().NoError(err)
	s.Require().NoError(s.reconciler.Sweep(s.ctx))

	s.services = handlers.Services{
		Accounts:      accounts,
		Profiles:      profiles,
		Organizations: controller.NewOrganizationService(s.repo, composer, indexer, producer, logger),
		Jobs:          jobs,
		Applications:  applications,
		Messages:      messages,
		Search:        controller.NewSearchService(s.repo, s.index, indexer, logger),
		Analytics:     controller.NewAnalyticsService(s.repo, logger),
		Admin:         controller.NewAdminService(s.repo, indexer, producer, logger),
	}
	mux, err := handlers.NewAPI(s.services, jwtSecret, time.Hour, logger).Mux()
	s.Require().NoError(err)
	s.server = httptest.NewServer(auth.HTTPMiddleware(mux, jwtSecret))
	t.Cleanup(s.server.Close)
}

func (s *IntegrationTestSuite) TestSeededCounts() {
	want := map[db.Counted]int64{
		db.CountAccounts:      5,
		db.CountOrganizations: 2,
		db.CountJobs:          3,
		db.CountApplications:  2,
		db.CountMessages:      2,
	}
	for what, n := range want {
		got, err := s.repo.Count(s.ctx, what)
		s.Require().NoError(err)
		s.Equal(n, got, string(what))
	}
	s.Equal(2, s.index.Collection(index.KindProfile).Len())
	s.Equal(2, s.index.Collection(index.KindOrganization).Len())
}

func (s *IntegrationTestSuite) TestUnfilteredSearchReturnsVisibleJobs() {
	page, err := s.services.Search.SearchJobs(s.ctx, models.Actor{}, controller.JobFilter{})
	s.Require().NoError(err)
	s.Equal(controller.SourceIndex, page.Source)
	s.Equal(2, page.Total)

	var got []uuid.UUID
	for _, item := range page.Items {
		got = append(got, item.ID)
		s.Equal(models.JobApproved, item.Status)
		s.NotNil(item.Organization)
	}
	s.ElementsMatch(s.seeded.JobIDs()[:2], got)
	s.NotContains(got, s.seeded.Jobs[2].ID)
}

func (s *IntegrationTestSuite) TestSeedTwice() {
	_, err := seed.Run(s.ctx, seed.Services{Store: s.repo}, "", zap.NewNop())
	s.ErrorIs(err, seed.ErrAlreadySeeded)
}

func (s *IntegrationTestSuite) TestHTTPFlow() {
	token := s.login(seed.AdminEmail)

	// Approve the pending contract job through the API and find it by text.
	req, err := http.NewRequest(http.MethodPut, s.server.URL+"/v1/jobs/"+s.seeded.Jobs[2].ID.String()+"/status",
		strings.NewReader(`{"status":"approved"}`))
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, err = http.Post(s.server.URL+"/v1/search/jobs", "application/json",
		strings.NewReader(`{"text":"irrigation","employment_types":["contract"]}`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var page controller.Page[controller.JobView]
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&page))
	s.Require().Len(page.Items, 1)
	s.Equal(s.seeded.Jobs[2].ID, page.Items[0].ID)

	req, err = http.NewRequest(http.MethodGet, s.server.URL+"/v1/analytics?window_months=3", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var data controller.AnalyticsData
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&data))
	s.Len(data.Months, 3)
	s.Equal(int64(5), data.CurrentMonth.Accounts)
	s.Equal(int64(3), data.Totals.Jobs)
}

func (s *IntegrationTestSuite) TestCandidateCannotReadAnalytics() {
	token := s.login("maria@workers.example")
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/v1/analytics", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *IntegrationTestSuite) login(email string) string {
	resp, err := http.Post(s.server.URL+"/v1/auth/token", "application/json",
		strings.NewReader(`{"email":"`+email+`","password":"`+seed.DefaultPassword+`"}`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Require().NotEmpty(body.Token)
	return body.Token
}

// TestKafkaRoundTrip needs a broker; set HARVEST_TEST_KAFKA_BROKERS to run it.
func TestKafkaRoundTrip(t *testing.T) {
	brokers := os.Getenv("HARVEST_TEST_KAFKA_BROKERS")
	if brokers == "" || testing.Short() {
		t.Skip("Skipping Kafka round trip")
	}
	logger := zaptest.NewLogger(t)
	list := strings.Split(brokers, ",")
	topic := "harvest-test-" + uuid.NewString()
	if err := events.EnsureTopic(list, topic, 1, logger); err != nil {
		t.Fatal(err)
	}

	producer := events.NewProducer(list, topic, logger)
	defer producer.Close()
	consumer := events.NewConsumer(list, topic, "harvest-test-"+uuid.NewString(), logger)
	defer consumer.Close()

	got := make(chan events.Event, 1)
	consumer.RegisterHandler(func(_ context.Context, ev events.Event) error {
		got <- ev
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	consumer.Start(ctx)

	id := uuid.New()
	producer.Produce(events.Event{Type: events.JobCreated, Kind: events.KindJob, ID: id, Status: string(models.JobDraft)})

	select {
	case ev := <-got:
		if ev.ID != id || ev.Type != events.JobCreated {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
