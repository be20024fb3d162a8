package main

import (
	"context"
	"fmt"

	"attendance.service/internal/adapters/kafka"
	"attendance.service/internal/adapters/memstore"
	"attendance.service/internal/adapters/postgres"
	"attendance.service/internal/adapters/sheets"
	sqsadapter "attendance.service/internal/adapters/sqs"
	"attendance.service/internal/adapters/webhook"
	"attendance.service/internal/config"
	"attendance.service/internal/core"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"attendance.service/pkg/aws"
	"attendance.service/pkg/database"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

func noop() {}

// newStore opens the remote table backend selected by STORE.
func newStore(ctx context.Context, cfg config.Config) (repository.SheetStore, func(), error) {
	switch cfg.Store {
	case "sheets":
		s, err := sheets.New(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsFile, cfg.SheetNames())
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case "postgres":
		db, err := database.NewInstrumentedConnection(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		log.Info().Msg("Successfully connected to the database.")
		s := postgres.NewStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return s, func() { _ = db.Close() }, nil

	case "memory":
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return memstore.New(), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown store %q", cfg.Store)
}

// newNotifier builds the downstream notifier selected by NOTIFIER.
func newNotifier(ctx context.Context, cfg config.Config) (messaging.Notifier, func(), error) {
	switch cfg.Notifier {
	case "webhook":
		return messaging.NewProducer(webhook.New(cfg.WebhookURL), cfg.WebhookURL), noop, nil

	case "sqs":
		awsCfg, err := aws.NewAWSConfig(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("unable to load SDK config: %w", err)
		}
		return sqsadapter.NewNotifier(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL), noop, nil

	case "kafka":
		sender := kafka.NewSender(cfg.KafkaBrokers)
		closeFn := func() {
			if err := sender.Close(); err != nil {
				log.Error().Err(err).Msg("Closing kafka writer")
			}
		}
		return kafka.NewNotifier(sender, cfg.KafkaTopic), closeFn, nil

	case "none", "":
		return messaging.Nop{}, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown notifier %q", cfg.Notifier)
}

// newSummaryMailer returns nil when no summary recipient is configured.
func newSummaryMailer(ctx context.Context, cfg config.Config) (core.SummaryMailer, error) {
	if cfg.SummaryEmailTo == "" {
		return nil, nil
	}
	awsCfg, err := aws.NewAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return core.NewSESSummaryMailer(ses.NewFromConfig(awsCfg), cfg.SummaryEmailFrom, cfg.SummaryEmailTo), nil
}
