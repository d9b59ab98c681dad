package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	api "github.com/avolkov/tinyurl/internal/api/http"
	"github.com/avolkov/tinyurl/internal/config"
	repository "github.com/avolkov/tinyurl/internal/database/postgres"
	"github.com/avolkov/tinyurl/internal/service"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type APITestSuite struct {
	suite.Suite
	pgCont  testcontainers.Container
	cfg     config.Postgres
	db      *sqlx.DB
	urlRepo *repository.URLRepository
	urlSvc  *service.URLService
	logger  *httplog.Logger
	server  *httptest.Server
	e       *httpexpect.Expect
}

func (suite *APITestSuite) SetupSuite() {
	ctx := context.Background()

	pgUser := "test"
	pgPassword := "test"
	pgDB := "tinyurl"

	var err error
	suite.pgCont, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDB,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForListeningPort("5432/tcp"),
		},
		Started: true,
	})
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.pgCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	pgHost, err := suite.pgCont.Host(ctx)
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container host: %v", err)
	}

	pgPort, err := suite.pgCont.MappedPort(ctx, "5432")
	if err != nil {
		suite.T().Fatalf("Failed to get postgres container port: %v", err)
	}

	suite.cfg = config.Postgres{
		User:         pgUser,
		Password:     pgPassword,
		Host:         pgHost,
		Port:         pgPort.Int(),
		DB:           pgDB,
		SSLMode:      "disable",
		QueryTimeout: 3 * time.Second,
	}

	suite.db, err = sqlx.Connect("pgx", suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := suite.db.Close(); err != nil {
			suite.T().Fatalf("Failed to close database: %v", err)
		}
	})

	root, err := findProjectRoot()
	if err != nil {
		suite.T().Fatalf("Failed to get project root: %v", err)
	}

	migrationsPath := "file://" + filepath.Join(root, "migrations")

	m, err := migrate.New(migrationsPath, suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to initialize migrations: %v", err)
	}

	if err := m.Up(); err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := m.Down(); err != nil {
			suite.T().Fatalf("Failed to rollback migrations: %v", err)
		}
	})

	suite.urlRepo = repository.NewURLRepository(suite.db, suite.cfg.QueryTimeout)
	suite.urlSvc = service.NewURLService(suite.urlRepo, 8)

	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	router := api.NewRouter(suite.logger, suite.urlSvc, suite.db, "")
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *APITestSuite) TearDownSubTest() {
	ctx := context.Background()

	_, err := suite.db.ExecContext(ctx, `TRUNCATE TABLE urls RESTART IDENTITY CASCADE`)
	if err != nil {
		suite.T().Fatalf("Failed to clean urls table: %v", err)
	}
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

func (suite *APITestSuite) TestHealth() {
	suite.Run("healthz", func() {
		suite.e.GET("/healthz").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", "ok")
	})

	suite.Run("readyz", func() {
		suite.e.GET("/readyz").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("ready", true).
			HasValue("db", true)
	})
}

func (suite *APITestSuite) TestCreateURL() {
	const path = "/urls"

	suite.Run("created", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://EXAMPLE.com/page?b=2&a=1"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.HasValue("status", "success")

		data := resp.Value("data").Object()
		shortURL := data.Value("url").String().Raw()
		data.Value("links").Object().HasValue("redirect", shortURL)

		url, err := suite.urlRepo.GetByCanonicalURL(context.Background(), "https://example.com/page?a=1&b=2")
		if err != nil {
			suite.T().Fatalf("Failed to retrieve url record: %v", err)
		}

		suite.Len(url.Slug, 8)
	})

	suite.Run("equivalent url returns the same slug", func() {
		first := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com/page?b=2&a=1"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			Value("data").Object().
			Value("url").String().Raw()

		second := suite.e.POST(path).
			WithJSON(map[string]string{"url": "HTTPS://example.com/page?a=1&b=2"}).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Object().
			Value("url").String().Raw()

		suite.Equal(first, second)
	})

	suite.Run("invalid url", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{"url": "http://"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", "error")
	})
}

func (suite *APITestSuite) TestRedirect() {
	suite.Run("url not found", func() {
		suite.e.GET("/missing1").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error")
	})

	suite.Run("redirects and records the access", func() {
		url, err := suite.urlRepo.Create(context.Background(), "abc12345", "https://example.com/", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		suite.e.GET("/" + url.Slug).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/")

		stats, err := suite.urlRepo.GetStats(context.Background(), url.Slug)
		if err != nil {
			suite.T().Fatalf("Failed to retrieve url stats: %v", err)
		}

		suite.Len(stats.AccessedAt, 1)
	})

	suite.Run("expired url", func() {
		expiresAt := time.Now().Add(-time.Hour)

		url, err := suite.urlRepo.Create(context.Background(), "expired1", "https://example.com/old", &expiresAt)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		suite.e.GET("/" + url.Slug).
			Expect().
			Status(http.StatusGone).
			JSON().Object().
			HasValue("status", "error")

		stats, err := suite.urlRepo.GetStats(context.Background(), url.Slug)
		if err != nil {
			suite.T().Fatalf("Failed to retrieve url stats: %v", err)
		}

		suite.Empty(stats.AccessedAt)
	})
}

func (suite *APITestSuite) TestGetURLStats() {
	const path = "/urls/%s"

	suite.Run("url not found", func() {
		suite.e.GET(fmt.Sprintf(path, "missing1")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error")
	})

	suite.Run("success", func() {
		url, err := suite.urlRepo.Create(context.Background(), "abc12345", "https://example.com/", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		for i := 0; i < 3; i++ {
			suite.e.GET("/" + url.Slug).
				Expect().
				Status(http.StatusFound)
		}

		data := suite.e.GET(fmt.Sprintf(path, url.Slug)).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Object()

		data.HasValue("canonical_url", "https://example.com/")
		data.Value("tinyurl").String().HasSuffix("/" + url.Slug)
		data.Value("accessed_at").Array().Length().IsEqual(3)
	})
}

func (suite *APITestSuite) TestListURLs() {
	const path = "/urls"

	suite.Run("empty", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Array().Length().IsEqual(0)
	})

	suite.Run("success", func() {
		for i, raw := range []string{"https://example.com/a", "https://example.com/b"} {
			_, err := suite.urlRepo.Create(context.Background(), fmt.Sprintf("slug%04d", i), raw, nil)
			if err != nil {
				suite.T().Fatalf("Failed to save url record: %v", err)
			}
		}

		data := suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Array()

		data.Length().IsEqual(2)
		data.Value(0).Object().HasValue("canonical_url", "https://example.com/a")
		data.Value(1).Object().HasValue("canonical_url", "https://example.com/b")
	})
}

func (suite *APITestSuite) TestDeleteURL() {
	const path = "/urls/%s"

	suite.Run("url not found", func() {
		suite.e.DELETE(fmt.Sprintf(path, "missing1")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error")
	})

	suite.Run("delete is exactly once", func() {
		url, err := suite.urlRepo.Create(context.Background(), "abc12345", "https://example.com/", nil)
		if err != nil {
			suite.T().Fatalf("Failed to save url record: %v", err)
		}

		suite.e.DELETE(fmt.Sprintf(path, url.Slug)).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("data").Object().
			HasValue("deleted", true)

		suite.e.DELETE(fmt.Sprintf(path, url.Slug)).
			Expect().
			Status(http.StatusNotFound)

		suite.e.GET("/" + url.Slug).
			Expect().
			Status(http.StatusNotFound)
	})
}

func TestAPI(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	suite.Run(t, new(APITestSuite))
}
