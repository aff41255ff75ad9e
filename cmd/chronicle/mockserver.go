package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pders01/chronicle/internal/gateway"
	"github.com/pders01/chronicle/internal/gateway/fakeapi"
)

var (
	mockAddr string
	mockSeed bool
)

const (
	demoName     = "Demo Chronicler"
	demoEmail    = "demo@chronicle.local"
	demoPassword = "chronicle"
)

func strPtr(s string) *string { return &s }

// seedDemo loads a demo account with a few articles.
func seedDemo(s *fakeapi.Server) gateway.User {
	user, _ := s.AddUser(demoName, demoEmail, demoPassword)
	seed := []gateway.Article{
		{
			Title:      "The Library of Alexandria",
			Content:    "## A wonder of learning\n\nFounded under **Ptolemy I**, the library gathered scrolls from across the Mediterranean.",
			CategoryID: 1,
			Tags:       strPtr("egypt,libraries"),
		},
		{
			Title:      "Magna Carta",
			Content:    "Sealed at Runnymede in **1215**, the charter bound the king to the law of the land.",
			CategoryID: 2,
			Tags:       strPtr("england,law"),
		},
		{
			Title:      "The Printing Press",
			Content:    "Gutenberg's movable type changed how ideas travelled through *early modern* Europe.",
			CategoryID: 3,
			Tags:       strPtr("printing,reformation"),
		},
		{
			Title:      "Notes on the Telegraph",
			Content:    "Unfinished draft about the first transatlantic cable.",
			CategoryID: 4,
			Status:     gateway.StatusDraft,
		},
	}
	for _, a := range seed {
		s.AddArticle(user.ID, a)
	}
	return user
}

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve an in-memory article API for local use",
	Long: `Serve the article REST API from memory, for trying the client without a
real service. Data is lost on exit.

With --seed a demo account is created:
  email:    ` + demoEmail + `
  password: ` + demoPassword,
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Str("component", "mock-server").Logger()

		api := fakeapi.New(log)
		if mockSeed {
			user := seedDemo(api)
			log.Info().Int("user_id", user.ID).Str("email", user.Email).Msg("Seeded demo data")
		}

		srv := &http.Server{
			Addr:              mockAddr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", mockAddr).Msg("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	},
}

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", ":3000", "listen address")
	mockServerCmd.Flags().BoolVar(&mockSeed, "seed", false, "create a demo account and articles")
	rootCmd.AddCommand(mockServerCmd)
}
