package main

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"proctorview/internal/config"
	"proctorview/internal/database"
	"proctorview/internal/evaluate"
	"proctorview/internal/evaluate/gemini"
	"proctorview/internal/identity"
	"proctorview/internal/inference"
	"proctorview/internal/logging"
	"proctorview/internal/models"
	"proctorview/internal/proctor"
	"proctorview/internal/repository"
	"proctorview/internal/router"
	"proctorview/internal/session"
)

func main() {
	// Initialize Logger
	log, err := logging.Init(filepath.Join(".", "logs"), logging.DefaultRotation())
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize configuration
	if err := config.Init(".", log); err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// The interview archive is optional; everything else works without it.
	var archiver session.Archiver
	if config.Conf.Database.Enabled {
		database.Init(log)
		archiver = repository.NewInterviewArchive()
	}

	// Load interview topics at startup
	catalog, err := models.LoadCatalog(config.Conf.Interview.TopicsFile)
	if err != nil {
		log.Fatal("Failed to load topic catalog", zap.Error(err))
	}

	// Text-generation capability for questions and answer scoring
	generator, err := gemini.NewGenerator(context.Background(), config.Conf.Gemini.APIKey, config.Conf.Gemini.Model)
	if err != nil {
		log.Fatal("Failed to initialize Gemini generator", zap.Error(err))
	}
	evaluator := evaluate.NewEvaluator(generator, evaluate.ScoreLineParser{}, log)

	// Face, emotion, and speech models live in the inference sidecar
	inferenceClient := inference.New(config.Conf.Models.InferenceURL, log)
	gate := identity.NewGate(inferenceClient, identity.NewFileStore(config.Conf.Models.ArtifactDir), log)

	timeouts := session.Timeouts{
		Verification: config.Conf.Models.VerificationTimeout,
		Generation:   config.Conf.Models.GenerationTimeout,
		Speech:       config.Conf.Speech.ListenTimeout,
	}

	// Each candidate gets an independent engine and monitor; nothing is
	// shared across sessions.
	registry := session.NewRegistry(func(candidateID string) *session.Candidate {
		// Frames arrive one-shot over HTTP, so the monitor's streaming
		// worker stays off; the handler analyzes and records directly.
		monitor := proctor.NewMonitor(inferenceClient, inferenceClient, config.Conf.Proctor.SampleInterval, log)

		engine := session.NewEngine(candidateID, session.Deps{
			Verifier:      gate,
			Questions:     evaluator,
			Scorer:        evaluator,
			Snapshots:     monitor,
			Transcriber:   inferenceClient,
			Archiver:      archiver,
			QuestionCount: config.Conf.Interview.QuestionCount,
			Timeouts:      timeouts,
			Logger:        log,
		})

		return &session.Candidate{Engine: engine, Monitor: monitor}
	})

	// Setup router
	r := router.Setup(log, registry, catalog)

	// Start the Gin server
	port := ":" + config.Conf.Server.Port
	log.Info("Server listening on http://localhost" + port)
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
