package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/procurahq/docintel/internal/extractor"
	"github.com/procurahq/docintel/internal/pipeline"
	"github.com/procurahq/docintel/internal/retrieval"
	"github.com/procurahq/docintel/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		ext, err := extractor.NewExtractor(cfg.Extractor)
		if err != nil {
			return err
		}

		oracle := anthropic.NewClient(cfg.Anthropic.Key)
		runner := pipeline.NewRunner(cfg, st, oracle, ext)
		engine := retrieval.NewEngine(cfg, st, retrieval.NewOpenAIEmbedder(cfg.OpenAI), oracle)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/documents", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name       string `json:"name"`
				SourcePath string `json:"source_path"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourcePath == "" {
				writeError(w, http.StatusBadRequest, "name and source_path are required")
				return
			}
			if req.Name == "" {
				req.Name = req.SourcePath
			}
			doc, err := st.CreateDocument(r.Context(), req.Name, req.SourcePath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, doc)
		})

		r.Post("/documents/{documentID}/process", func(w http.ResponseWriter, r *http.Request) {
			documentID := chi.URLParam(r, "documentID")
			if _, err := st.GetDocument(r.Context(), documentID); err != nil {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}

			// Extraction runs minutes-long; reply immediately and let the
			// run finish in the background.
			go func() {
				result, err := runner.Process(ctx, documentID)
				if err != nil {
					zap.L().Error("serve: processing failed",
						zap.String("document_id", documentID),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("serve: processing complete",
					zap.String("document_id", documentID),
					zap.String("status", string(result.Status)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":      "accepted",
				"document_id": documentID,
			})
		})

		r.Post("/documents/{documentID}/retrieval", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Regenerate bool `json:"regenerate"`
			}
			if r.ContentLength > 0 {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
			}
			result, err := engine.Prepare(r.Context(), chi.URLParam(r, "documentID"), req.Regenerate)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, result)
		})

		r.Post("/documents/{documentID}/chat", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Message        string `json:"message"`
				ConversationID string `json:"conversation_id"`
				TopK           int    `json:"top_k"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
				writeError(w, http.StatusBadRequest, "message is required")
				return
			}
			reply, err := engine.Chat(r.Context(), chi.URLParam(r, "documentID"), req.Message, req.ConversationID, req.TopK)
			if err != nil {
				if eris.Is(err, retrieval.ErrNotReady) {
					writeError(w, http.StatusConflict, "document not embedded yet: trigger retrieval preparation first")
					return
				}
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, reply)
		})

		r.Get("/documents/{documentID}/stats", func(w http.ResponseWriter, r *http.Request) {
			report, err := buildDocumentReport(r.Context(), st, chi.URLParam(r, "documentID"))
			if err != nil {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			if err := awaitShutdown(ctx, srv, 15*time.Second); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// awaitShutdown blocks until ctx is canceled, then drains in-flight requests.
// The signal context is already canceled at that point, so the drain gets its
// own deadline.
func awaitShutdown(ctx context.Context, srv *http.Server, drain time.Duration) error {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
