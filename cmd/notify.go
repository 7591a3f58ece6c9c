/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dlms-org/apiserver/config"
	"github.com/dlms-org/apiserver/internal/logging"
	"github.com/dlms-org/apiserver/internal/mq"
	"github.com/dlms-org/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// notifyCmd consumes license events and notifies license holders.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume license events and send holder notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("notify requires MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer queue.Close()

		dispatcher := notify.NewDispatcher(queue, notify.LogSender{Logger: logger}, logger)
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("notify stopped")
			return err
		}
		logger.Info().Msg("notify stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
