package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pccr10001/smsfleet/internal/agent"
	"github.com/pccr10001/smsfleet/internal/config"
	"github.com/pccr10001/smsfleet/internal/mccmnc"
	"github.com/pccr10001/smsfleet/internal/modem"
	"github.com/pccr10001/smsfleet/pkg/logger"
)

func main() {
	config.LoadConfig()

	logger.InitLogger(config.AppConfig.Log.Level)
	logger.Log.Info("Starting SMS fleet agent...")

	if err := mccmnc.LoadOperators("mcc_mnc.json"); err != nil {
		logger.Log.Warnf("Failed to load MCC/MNC data: %v", err)
	}

	cfg := config.AppConfig
	if cfg.Agent.ServerURL == "" {
		logger.Log.Fatal("agent.server_url is required")
	}
	deviceID := cfg.Agent.DeviceID
	logger.Log.Infof("Device id: %s", deviceID)

	dialer := modem.SerialDialer{}
	arbiter := modem.NewPortArbiter()

	scanner := modem.NewScanner(deviceID, dialer, modem.ListPorts, cfg.Scanner.BaudRates)
	scanner.Exclude = cfg.Scanner.ExcludePorts

	receiver := modem.NewReceiver(dialer, arbiter, modem.HangupPolicy{
		Enabled:   cfg.Hangup.Enabled,
		Delay:     time.Duration(cfg.Hangup.DelayMs) * time.Millisecond,
		Cooldown:  time.Duration(cfg.Hangup.CooldownMs) * time.Millisecond,
		Whitelist: cfg.Hangup.Whitelist,
	})
	sender := modem.NewSender(dialer, arbiter)
	defer sender.Close()

	driver := agent.NewDriver(deviceID, scanner, receiver, sender, cfg.Receiver.AutoStartOnScan)
	client := agent.NewClient(cfg.Agent.ServerURL, deviceID, driver)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Log.Info("Shutting down agent...")
		cancel()
	}()

	client.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := receiver.StopListening(stopCtx); err != nil {
		logger.Log.Warnf("Receiver stop incomplete: %v", err)
	}
}
