// Package server exposes the translation store over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/japaniel/tarjama/pkg/ingest"
	"github.com/japaniel/tarjama/pkg/merge"
	"github.com/japaniel/tarjama/pkg/store"
)

// TranslationStore is the store surface the handlers use.
type TranslationStore interface {
	All() []store.Record
	Get(key string) (store.Record, error)
	Upsert(key, english, arabic string, tags []string) (int64, error)
	Delete(key string) error
	Since(minVersion int64, tag string) []store.Record
	FindByEnglish(text string) (store.Record, error)
	Len() int
}

// Merger reconciles uploaded batches with the store.
type Merger interface {
	MergeMappings(english, arabic ingest.Mapping, tags []string) (merge.Result, error)
	MergeRows(rows []ingest.Row, tags []string) (merge.Result, error)
}

// TranslationServer holds the handlers and their dependencies.
type TranslationServer struct {
	logger *slog.Logger
	store  TranslationStore
	merger Merger
}

func NewTranslationServer(st TranslationStore, merger Merger, logger *slog.Logger) *TranslationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranslationServer{logger: logger, store: st, merger: merger}
}

// Register mounts the translation routes on e.
func (t *TranslationServer) Register(e *echo.Echo) {
	e.GET("/healthz", t.Health)
	e.GET("/translations", t.ListTranslations)
	e.GET("/translation/:key", t.GetTranslation)
	e.PUT("/translation/:key", t.PutTranslation)
	e.DELETE("/translation/:key", t.DeleteTranslation)
	e.GET("/translations-since/:version", t.TranslationsSince)
	e.GET("/search-english/:text", t.SearchEnglish)
	e.POST("/upload-json", t.UploadJSON)
	e.POST("/upload-excel", t.UploadExcel)
	e.POST("/bulk-update", t.BulkUpdate)
}

// New builds the echo instance with logging, recovery and CORS middleware.
func New(t *TranslationServer, bodyLimit string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				level := slog.LevelInfo
				attrs := []slog.Attr{
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Duration("latency", v.Latency),
				}
				if v.Error != nil {
					level = slog.LevelError
					attrs = append(attrs, slog.Any("err", v.Error))
				}
				t.logger.LogAttrs(context.Background(), level, "request", attrs...)
				return nil
			},
		}),
		middleware.Recover(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}),
	)
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}

	t.Register(e)
	return e
}

// Run serves e on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr))
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("server shutting down")
	return e.Shutdown(shutdownCtx)
}
